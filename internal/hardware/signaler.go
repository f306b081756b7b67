// Package hardware signals the physical lock controllers mounted on each
// machine. Commands are fire-and-forget: a failed unlock is logged for the
// operator but never fails the session that triggered it.
package hardware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gym-access-backend/internal/model"
)

// Command is a lock-controller instruction.
type Command string

const (
	CommandUnlock Command = "UNLOCK"
	CommandLock   Command = "LOCK"
)

// Signaler delivers lock/unlock commands to a machine's controller.
type Signaler interface {
	Signal(ctx context.Context, equipment model.Equipment, cmd Command)
}

// HTTPSignaler posts commands to the lock-controller gateway.
type HTTPSignaler struct {
	url    string
	client *http.Client
}

// NewHTTPSignaler creates a signaler for the gateway at the given URL. An
// empty URL yields a signaler that only logs, which keeps development
// setups without hardware working.
func NewHTTPSignaler(url string, timeout time.Duration) *HTTPSignaler {
	return &HTTPSignaler{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type commandPayload struct {
	CommandID    string  `json:"command_id"`
	ControllerID string  `json:"controller_id"`
	Command      Command `json:"command"`
}

// Signal sends the command. Errors are logged, never returned.
func (s *HTTPSignaler) Signal(ctx context.Context, equipment model.Equipment, cmd Command) {
	commandID := uuid.NewString()
	if s.url == "" {
		log.Printf("hardware: no gateway configured, skipping %s for equipment %d (command %s)",
			cmd, equipment.ID, commandID)
		return
	}

	body, err := json.Marshal(commandPayload{
		CommandID:    commandID,
		ControllerID: equipment.ControllerID,
		Command:      cmd,
	})
	if err != nil {
		log.Printf("hardware: marshal %s for equipment %d: %v", cmd, equipment.ID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/commands", s.url), bytes.NewReader(body))
	if err != nil {
		log.Printf("hardware: build %s for equipment %d: %v", cmd, equipment.ID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("hardware: send %s to equipment %d failed: %v", cmd, equipment.ID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("hardware: gateway rejected %s for equipment %d: status %d (command %s)",
			cmd, equipment.ID, resp.StatusCode, commandID)
	}
}
