package organizations

// OrganizationForm is the body of POST / and PUT /<org>/. On update it is
// pre-filled from the stored organization, so absent fields keep their value.
type OrganizationForm struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"required"`
}

// MembershipRequestForm is the body of POST /<org>/membership/.
type MembershipRequestForm struct {
	Comment string `json:"comment" binding:"max=1000"`
}

// MembershipRefuseForm is the body of POST /<org>/membership/<id>/refuse/.
type MembershipRefuseForm struct {
	Comment string `json:"comment" binding:"required,max=1000"`
}
