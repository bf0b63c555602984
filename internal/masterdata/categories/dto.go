package categories

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
}

func (r categoryRequest) category() Category {
	return Category{Name: r.Name, Description: r.Description}
}
