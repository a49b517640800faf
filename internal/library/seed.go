package library

// SeedSnapshot returns the sample records written to an empty backing store.
func SeedSnapshot() Snapshot {
	return Snapshot{
		Books: []Book{
			{BookID: 123456, Title: "Connie hat Bierschiss", Author: "Petra D. Waix", Available: true},
			{BookID: 234567, Title: "Davids Traum vom großen Klau", Author: "Jules Verne", Available: false},
		},
		Members: []Member{
			{MemberID: 123456, FirstName: "Hans", LastName: "Wiwi", Address: "Bergstraße 3"},
			{MemberID: 234583, FirstName: "Nina", LastName: "Duli", Address: "Grünwinkel"},
		},
		Loans: []Loan{},
	}
}
