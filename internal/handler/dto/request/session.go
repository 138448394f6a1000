package request

type CreateSessionRequest struct {
	ServiceType          string `json:"service_type" binding:"required"`
	RentalTimeMinutes    int    `json:"rental_time_minutes" binding:"required,min=1"`
	WithChemistry        bool   `json:"with_chemistry"`
	ChemistryTimeMinutes int    `json:"chemistry_time_minutes" binding:"min=0"`
	CarNumber            string `json:"car_number"`
	PaymentMethod        string `json:"payment_method" binding:"required"`
}

type ExtendSessionRequest struct {
	ExtensionTimeMinutes          int    `json:"extension_time_minutes" binding:"required,min=1"`
	ExtensionChemistryTimeMinutes int    `json:"extension_chemistry_time_minutes" binding:"min=0"`
	PaymentMethod                 string `json:"payment_method" binding:"required"`
}

type RetryPaymentRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}
