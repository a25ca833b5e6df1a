package strategy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStrategies(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validFile = `{
  "strategies": [
    {
      "strategy_id": "nifty-breakout",
      "instrument": "NIFTY",
      "entry_condition": "price > 20100",
      "exit_condition": "price < 20000 OR time >= 15:20",
      "quantity": 10,
      "max_loss": 200,
      "max_profit": 1000
    },
    {
      "strategy_id": "banknifty-open",
      "instrument": "BANKNIFTY",
      "entry_condition": "price >= 45000",
      "exit_condition": "time >= 15:00",
      "quantity": 5,
      "max_loss": 500.50,
      "max_profit": 2500
    }
  ]
}`

func TestLoadFile(t *testing.T) {
	t.Parallel()

	defs, err := LoadFile(writeStrategies(t, validFile))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("loaded %d strategies, want 2", len(defs))
	}
	if defs[0].ID != "nifty-breakout" || defs[0].Quantity != 10 {
		t.Errorf("unexpected first strategy: %+v", defs[0])
	}
	if got := defs[1].MaxLoss.String(); got != "500.5" {
		t.Errorf("max_loss = %s, want 500.5", got)
	}
}

func TestLoadFileRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantIn  string
	}{
		{
			"unknown field",
			`{"strategies":[{"strategy_id":"s1","instrument":"X","entry_condition":"price > 1","exit_condition":"price < 1","quantity":1,"max_loss":1,"max_profit":1,"leverage":10}]}`,
			"unknown field",
		},
		{
			"missing quantity",
			`{"strategies":[{"strategy_id":"s1","instrument":"X","entry_condition":"price > 1","exit_condition":"price < 1","max_loss":1,"max_profit":1}]}`,
			"quantity",
		},
		{
			"missing entry condition",
			`{"strategies":[{"strategy_id":"s1","instrument":"X","exit_condition":"price < 1","quantity":1,"max_loss":1,"max_profit":1}]}`,
			"entry_condition",
		},
		{
			"negative max_loss",
			`{"strategies":[{"strategy_id":"s1","instrument":"X","entry_condition":"price > 1","exit_condition":"price < 1","quantity":1,"max_loss":-5,"max_profit":1}]}`,
			"max_loss",
		},
		{
			"duplicate id",
			`{"strategies":[
			  {"strategy_id":"s1","instrument":"X","entry_condition":"price > 1","exit_condition":"price < 1","quantity":1,"max_loss":1,"max_profit":1},
			  {"strategy_id":"s1","instrument":"Y","entry_condition":"price > 1","exit_condition":"price < 1","quantity":1,"max_loss":1,"max_profit":1}
			]}`,
			"duplicate",
		},
		{
			"empty file",
			`{"strategies":[]}`,
			"no strategies",
		},
		{
			"not json",
			`strategies: []`,
			"parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFile(writeStrategies(t, tt.content))
			if err == nil {
				t.Fatal("LoadFile succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error %q does not mention %q", err, tt.wantIn)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("LoadFile succeeded for missing file")
	}
}
