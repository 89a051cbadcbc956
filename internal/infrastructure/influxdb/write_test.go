package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/hydrogate/internal/infrastructure/config"
)

func TestControlChangePoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("amount set", func(t *testing.T) {
		amount := 12.5
		line := write.PointToLineProtocol(controlChangePoint("nutrient_pump", &amount, at), time.Second)

		if !strings.HasPrefix(line, "component_control,component_name=nutrient_pump ") {
			t.Errorf("line = %q, want component_control measurement tagged by component", line)
		}
		if !strings.Contains(line, "dispense_amount=12.5") {
			t.Errorf("line = %q, missing dispense_amount field", line)
		}
		if !strings.Contains(line, "cleared=false") {
			t.Errorf("line = %q, missing cleared=false", line)
		}
	})

	t.Run("amount cleared", func(t *testing.T) {
		line := write.PointToLineProtocol(controlChangePoint("nutrient_pump", nil, at), time.Second)

		if strings.Contains(line, "dispense_amount") {
			t.Errorf("line = %q, should not carry dispense_amount", line)
		}
		if !strings.Contains(line, "cleared=true") {
			t.Errorf("line = %q, missing cleared=true", line)
		}
	})
}

func TestWriteControlChange_Disconnected(t *testing.T) {
	c := &Client{}
	amount := 1.0
	c.WriteControlChange("pump", &amount) // must not touch the nil write API
	c.Flush()
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.InfluxDBConfig
		wantBatch uint
		wantFlush uint
	}{
		{"configured", config.InfluxDBConfig{BatchSize: 50, FlushInterval: 2}, 50, 2000},
		{"defaults for zero", config.InfluxDBConfig{}, defaultBatchSize, 10000},
		{"defaults for negative", config.InfluxDBConfig{BatchSize: -1, FlushInterval: -5}, defaultBatchSize, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := clientOptions(tt.cfg)
			if got := opts.BatchSize(); got != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", got, tt.wantBatch)
			}
			if got := opts.FlushInterval(); got != tt.wantFlush {
				t.Errorf("FlushInterval() = %d, want %d", got, tt.wantFlush)
			}
			if got := opts.Precision(); got != time.Millisecond {
				t.Errorf("Precision() = %v, want 1ms", got)
			}
			if got := opts.WriteOptions().DefaultTags()[serviceTag]; got != serviceValue {
				t.Errorf("default %s tag = %q, want %q", serviceTag, got, serviceValue)
			}
		})
	}
}
