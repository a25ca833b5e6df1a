package strategy

import (
	"encoding/json"
	"fmt"
	"os"

	"trading-engine/pkg/types"
)

// LoadFile reads strategy definitions from a JSON strategies file of the
// form {"strategies": [...]}. Unknown fields and schema violations are
// rejected, as is a duplicate strategy_id.
func LoadFile(path string) ([]types.Strategy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open strategies file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var doc struct {
		Strategies []types.Strategy `json:"strategies"`
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse strategies file: %w", err)
	}
	if len(doc.Strategies) == 0 {
		return nil, fmt.Errorf("strategies file %s defines no strategies", path)
	}

	seen := make(map[string]bool, len(doc.Strategies))
	for i, def := range doc.Strategies {
		if err := validate(def); err != nil {
			return nil, fmt.Errorf("strategy %d (%q): %w", i, def.ID, err)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("duplicate strategy_id %q", def.ID)
		}
		seen[def.ID] = true
	}
	return doc.Strategies, nil
}

func validate(def types.Strategy) error {
	switch {
	case def.ID == "":
		return fmt.Errorf("strategy_id is required")
	case def.Instrument == "":
		return fmt.Errorf("instrument is required")
	case def.EntryCondition == "":
		return fmt.Errorf("entry_condition is required")
	case def.ExitCondition == "":
		return fmt.Errorf("exit_condition is required")
	case def.Quantity <= 0:
		return fmt.Errorf("quantity must be positive, got %d", def.Quantity)
	case !def.MaxLoss.IsPositive():
		return fmt.Errorf("max_loss must be positive, got %s", def.MaxLoss)
	case !def.MaxProfit.IsPositive():
		return fmt.Errorf("max_profit must be positive, got %s", def.MaxProfit)
	}
	return nil
}
