package state

import "chatdesk/models"

// Registry holds the selectable models and the selected model id.
// The selection survives session switches and catalog refreshes.
type Registry struct {
	models   []models.Model
	selected string
}

func NewRegistry(defaultModel string) Registry {
	return Registry{selected: defaultModel}
}

func (r *Registry) Replace(list []models.Model) {
	r.models = append([]models.Model(nil), list...)
}

// Select changes the selected model. Before the list is fetched any id is
// accepted, afterwards it has to be one of the listed models.
func (r *Registry) Select(id string) error {
	if id == "" {
		return ErrModelNotFound
	}
	if len(r.models) > 0 {
		found := false
		for _, m := range r.models {
			if m.ID == id {
				found = true
				break
			}
		}
		if !found {
			return ErrModelNotFound
		}
	}
	r.selected = id
	return nil
}

func (r *Registry) Selected() string {
	return r.selected
}

func (r *Registry) Models() []models.Model {
	return append([]models.Model(nil), r.models...)
}
