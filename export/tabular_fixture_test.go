package export

import "time"

func transactionColumns() []ColumnDescriptor {
	return []ColumnDescriptor{
		{Field: "date", Header: "date", Type: ValueDate},
		{Field: "description", Header: "description", Type: ValueString},
		{Field: "amount", Header: "amount", Type: ValueCurrency},
	}
}

func transactionRows() []Row {
	return []Row{
		{"date": time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), "description": "rent", "amount": 1200},
		{"date": "2024-03-02", "description": "coffee, and snacks", "amount": 8.5},
		{"date": time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), "description": `the "good" stuff`, "amount": -42.126},
		{"date": "2024-03-04T18:00:00Z", "description": "line one\nline two", "amount": "19.99"},
	}
}
