package entities

type ReservationEmailData struct {
	LicensePlate       string
	ReservationID      string
	SpaceID            int
	StartTimeFormatted string
	EndTimeFormatted   string
	CurrentYear        int
	Language           string
	Status             string
}
