package providers

import "tg-feedwatch-bot/internal/domain"

// Registry хранит сконструированные адаптеры источников.
// Заполняется один раз при старте и дальше только читается.
type Registry struct {
	byTag map[domain.Provider]domain.ContentProvider
	order []domain.ContentProvider
}

// NewRegistry собирает реестр из адаптеров.
func NewRegistry(list ...domain.ContentProvider) *Registry {
	r := &Registry{byTag: make(map[domain.Provider]domain.ContentProvider, len(list))}
	for _, p := range list {
		if _, ok := r.byTag[p.Tag()]; ok {
			continue
		}
		r.byTag[p.Tag()] = p
		r.order = append(r.order, p)
	}
	return r
}

// Get возвращает адаптер по идентификатору источника.
func (r *Registry) Get(tag domain.Provider) (domain.ContentProvider, bool) {
	p, ok := r.byTag[tag]
	return p, ok
}

// All возвращает адаптеры в порядке регистрации.
func (r *Registry) All() []domain.ContentProvider {
	return r.order
}
