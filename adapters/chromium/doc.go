// Package exportchromium drives a shared headless Chromium for docexport.
//
// A Browser owns one allocator and browser process. Pages opened from it act
// as the host view: Rasterizer screenshots an element into an export.RasterImage,
// SnapshotSource copies its markup and stylesheets for printing, and Element
// hides or restores nodes through their inline display style. Surface is an
// export.PresentationSurface that loads the composed print document into a
// fresh tab, prints it to PDF and hands the result to a PrintSink (an lp
// spooler or a file sink).
package exportchromium
