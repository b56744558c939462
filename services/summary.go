package services

import "myhome_scrooper/models"

// Summarize counts records per category and how many carry a phone number.
func Summarize(records []models.ListingRecord) models.Summary {
	var s models.Summary
	for i := range records {
		s.Total++
		switch records[i].Category {
		case models.CategorySale:
			s.Sale++
		case models.CategoryRent:
			s.Rent++
		}
		if records[i].HasPhone() {
			s.WithPhone++
		}
	}
	return s
}
