package request

type CreateBoxRequest struct {
	Number                int    `json:"number" binding:"required,min=1"`
	ServiceType           string `json:"service_type" binding:"required"`
	ChemistryEnabled      bool   `json:"chemistry_enabled"`
	LightCoilRegister     string `json:"light_coil_register" binding:"required"`
	ChemistryCoilRegister string `json:"chemistry_coil_register"`
}

type SetMaintenanceRequest struct {
	Maintenance *bool `json:"maintenance" binding:"required"`
}
