package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

// Stats aggregates the registry for the dashboard.
type Stats struct {
	Total           int     `json:"total"`
	Vendeurs        int     `json:"vendeurs"`
	Acheteurs       int     `json:"acheteurs"`
	Evaluations     int     `json:"evaluations"`
	Information     int     `json:"information"`
	HighPriority    int     `json:"high_priority"`
	CommissionTotal float64 `json:"potentiel_commission_total"`
}

// Clients returns every client in creation order.
func (registry *Registry) Clients(ctx context.Context) []model.ClientRecord {
	return registry.clients.Read(ctx)
}

// Client looks up one client.
func (registry *Registry) Client(ctx context.Context, id string) (model.ClientRecord, bool) {
	for _, client := range registry.clients.Read(ctx) {
		if client.ID == id {
			return client, true
		}
	}
	return model.ClientRecord{}, false
}

// Search matches query against name, address, email and city, ignoring case and accents.
func (registry *Registry) Search(ctx context.Context, query string) []model.ClientRecord {
	needle := foldOrLower(strings.TrimSpace(query))
	return registry.filter(ctx, func(client model.ClientRecord) bool {
		if needle == "" {
			return true
		}
		for _, field := range []string{client.DisplayName(), client.Address, client.Email, client.City} {
			if strings.Contains(foldOrLower(field), needle) {
				return true
			}
		}
		return false
	})
}

// ByCategory returns the clients in category.
func (registry *Registry) ByCategory(ctx context.Context, category model.ClientCategory) []model.ClientRecord {
	return registry.filter(ctx, func(client model.ClientRecord) bool {
		return client.Category == category
	})
}

// HighPriority returns clients at or above HighPriorityFloor.
func (registry *Registry) HighPriority(ctx context.Context) []model.ClientRecord {
	return registry.filter(ctx, func(client model.ClientRecord) bool {
		return client.Priority >= HighPriorityFloor
	})
}

// Stats counts clients per category and sums the commission estimates.
func (registry *Registry) Stats(ctx context.Context) Stats {
	var stats Stats
	for _, client := range registry.clients.Read(ctx) {
		stats.Total++
		switch client.Category {
		case model.CategoryVendeur:
			stats.Vendeurs++
		case model.CategoryAcheteur:
			stats.Acheteurs++
		case model.CategoryEvaluation:
			stats.Evaluations++
		default:
			stats.Information++
		}
		if client.Priority >= HighPriorityFloor {
			stats.HighPriority++
		}
		stats.CommissionTotal += client.CommissionEstimate
	}
	return stats
}

// UpdateStatus moves a client through its commercial lifecycle.
func (registry *Registry) UpdateStatus(ctx context.Context, id string, status model.ClientStatus) (model.ClientRecord, error) {
	parsed, parseErr := model.ParseClientStatus(string(status))
	if parseErr != nil {
		return model.ClientRecord{}, parseErr
	}
	return registry.mutateClient(ctx, id, func(client *model.ClientRecord) error {
		client.Status = parsed
		return nil
	})
}

// AppendInteraction records a touchpoint on a client.
func (registry *Registry) AppendInteraction(ctx context.Context, id string, kind string, note string) (model.ClientRecord, error) {
	interaction, interactionErr := model.NewInteraction(kind, note, registry.clock())
	if interactionErr != nil {
		return model.ClientRecord{}, interactionErr
	}
	return registry.mutateClient(ctx, id, func(client *model.ClientRecord) error {
		client.Interactions = append(client.Interactions, interaction)
		return nil
	})
}

func (registry *Registry) mutateClient(ctx context.Context, id string, mutate func(*model.ClientRecord) error) (model.ClientRecord, error) {
	var updated model.ClientRecord
	_, updateErr := registry.clients.Update(ctx, func(clients *[]model.ClientRecord) error {
		for index := range *clients {
			if (*clients)[index].ID != id {
				continue
			}
			if err := mutate(&(*clients)[index]); err != nil {
				return err
			}
			(*clients)[index].LastActivityAt = registry.clock()
			updated = (*clients)[index]
			return nil
		}
		return fmt.Errorf("%w: %s", ErrClientNotFound, id)
	})
	if updateErr != nil {
		return model.ClientRecord{}, updateErr
	}
	return updated, nil
}

func (registry *Registry) filter(ctx context.Context, keep func(model.ClientRecord) bool) []model.ClientRecord {
	clients := registry.clients.Read(ctx)
	matching := make([]model.ClientRecord, 0, len(clients))
	for _, client := range clients {
		if keep(client) {
			matching = append(matching, client)
		}
	}
	return matching
}
