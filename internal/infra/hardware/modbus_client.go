package hardware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"
)

// CoilWriter is the whole hardware contract: set coil register R to boolean V,
// report success or failure. Failures are surfaced, never swallowed.
type CoilWriter interface {
	SetCoil(ctx context.Context, register string, value bool) error
}

type setCoilRequest struct {
	Register string `json:"register"`
	Value    bool   `json:"value"`
}

type setCoilResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ModbusGatewayClient talks to the Modbus-capable gateway that fronts the box
// controllers.
type ModbusGatewayClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewModbusGatewayClient(cfg config.HardwareConfig, logger *slog.Logger) *ModbusGatewayClient {
	return &ModbusGatewayClient{
		baseURL: cfg.GatewayURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

func (c *ModbusGatewayClient) SetCoil(ctx context.Context, register string, value bool) error {
	payload, err := json.Marshal(setCoilRequest{Register: register, Value: value})
	if err != nil {
		return errs.Wrap(err, "failed to marshal coil request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/coils", bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(err, "failed to build coil request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("coil write request failed", "register", register, "value", value, "error", err)
		return errs.Wrap(err, "coil write request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn("modbus gateway returned non-success", "register", register, "status", resp.StatusCode)
		return errs.New(fmt.Sprintf("modbus gateway returned status %d", resp.StatusCode))
	}

	var body setCoilResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errs.Wrap(err, "failed to decode coil response")
	}
	if !body.Success {
		return errs.New("coil write rejected: " + body.Message)
	}

	return nil
}
