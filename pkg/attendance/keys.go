package attendance

import (
	"context"

	"github.com/ccollicutt/attendlog/pkg/table"
)

// KeyItem describes one resolved identity for building exemption choices.
type KeyItem struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	RawNames []string `json:"raw_names"`
}

// ExtractKeys resolves a log and lists its identity keys in first-seen
// order. It makes no attendance decisions.
func (e *Engine) ExtractKeys(ctx context.Context, log *table.Table) ([]KeyItem, error) {
	p, err := e.prepare(ctx, log)
	if err != nil {
		return nil, err
	}

	students := p.res.Students()
	items := make([]KeyItem, 0, len(students))
	for _, st := range students {
		items = append(items, KeyItem{
			Key:      st.Key.String(),
			Name:     st.Name,
			RawNames: st.RawNameList(),
		})
	}
	return items, nil
}
