package dto

// CreateStudentRequest registers a student explicitly.
type CreateStudentRequest struct {
	ID         string `json:"id" validate:"required,max=64"`
	FirstName  string `json:"first_name" validate:"required,max=120"`
	LastName   string `json:"last_name" validate:"omitempty,max=120"`
	Email      string `json:"email" validate:"omitempty,email"`
	NationalID string `json:"national_id" validate:"omitempty,max=32"`
	Program    string `json:"program" validate:"omitempty,max=200"`
}
