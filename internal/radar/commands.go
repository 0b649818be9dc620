package radar

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/ld2410/internal/protocol"
)

// Parameter words inside the 0x0060 and 0x0064 command values. Each word is
// sent as u16 LE followed by a u32 LE value.
const (
	paramMaxMovingGate uint16 = 0x0000
	paramMaxStaticGate uint16 = 0x0001
	paramNoOneDuration uint16 = 0x0002

	paramSensGate   uint16 = 0x0000
	paramSensMoving uint16 = 0x0001
	paramSensStatic uint16 = 0x0002
)

// ModuleParameters is the configuration read back from the module with
// ReadParameters.
type ModuleParameters struct {
	MaxGate           uint8
	MaxMovingGate     uint8
	MaxStaticGate     uint8
	MovingSensitivity []uint8
	StaticSensitivity []uint8
	NoOneDurationS    uint16
}

func appendParam(value []byte, word uint16, v uint32) []byte {
	value = binary.LittleEndian.AppendUint16(value, word)
	value = binary.LittleEndian.AppendUint32(value, v)
	return value
}

// run executes a command and folds the ACK status into the error.
func (h *Handler) run(ctx context.Context, word uint16, value []byte) (CommandResult, error) {
	res, err := h.execute(ctx, word, value)
	if err != nil {
		return CommandResult{}, err
	}
	if !res.Success {
		return CommandResult{}, &CommandError{Word: word}
	}
	return res, nil
}

// requireConfigMode fails fast, before any bytes are sent, when the module
// has not been put into configuration mode.
func (h *Handler) requireConfigMode(op string) error {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if !h.state.ConfigModeEntered {
		return fmt.Errorf("%s: %w", op, ErrProtocolState)
	}
	return nil
}

// EnterConfigMode puts the module into configuration mode. Every other
// command requires it.
func (h *Handler) EnterConfigMode(ctx context.Context) error {
	// Command value is the protocol version the host speaks (0x0001).
	if _, err := h.run(ctx, protocol.CmdEnableConfig, []byte{0x01, 0x00}); err != nil {
		return err
	}
	h.stateMu.Lock()
	h.state.ConfigModeEntered = true
	h.stateMu.Unlock()
	return nil
}

// ExitConfigMode returns the module to reporting mode.
func (h *Handler) ExitConfigMode(ctx context.Context) error {
	if err := h.requireConfigMode("exit config mode"); err != nil {
		return err
	}
	if _, err := h.run(ctx, protocol.CmdEndConfig, nil); err != nil {
		return err
	}
	h.stateMu.Lock()
	h.state.ConfigModeEntered = false
	h.stateMu.Unlock()
	return nil
}

// EnableEngineeringMode switches the module's reports to engineering mode
// (per-gate energy profiles).
func (h *Handler) EnableEngineeringMode(ctx context.Context) error {
	if err := h.requireConfigMode("enable engineering mode"); err != nil {
		return err
	}
	if _, err := h.run(ctx, protocol.CmdEnableEngineering, nil); err != nil {
		return err
	}
	h.stateMu.Lock()
	h.state.EngineeringModeEnabled = true
	h.stateMu.Unlock()
	return nil
}

// DisableEngineeringMode switches reports back to basic mode.
func (h *Handler) DisableEngineeringMode(ctx context.Context) error {
	if err := h.requireConfigMode("disable engineering mode"); err != nil {
		return err
	}
	if _, err := h.run(ctx, protocol.CmdEndEngineering, nil); err != nil {
		return err
	}
	h.stateMu.Lock()
	h.state.EngineeringModeEnabled = false
	h.stateMu.Unlock()
	return nil
}

// SetGateSensitivity sets the moving and static detection thresholds for one
// distance gate. Thresholds are percentages (0-100).
func (h *Handler) SetGateSensitivity(ctx context.Context, gate int, moving, static uint8) error {
	if gate < 0 || gate >= protocol.GateCount {
		return fmt.Errorf("gate %d out of range [0,%d)", gate, protocol.GateCount)
	}
	if moving > 100 || static > 100 {
		return fmt.Errorf("sensitivity thresholds are percentages, got moving=%d static=%d", moving, static)
	}
	if err := h.requireConfigMode("set gate sensitivity"); err != nil {
		return err
	}

	var value []byte
	value = appendParam(value, paramSensGate, uint32(gate))
	value = appendParam(value, paramSensMoving, uint32(moving))
	value = appendParam(value, paramSensStatic, uint32(static))
	_, err := h.run(ctx, protocol.CmdSetGateSensitivity, value)
	return err
}

// SetMaxDistanceGates limits how far out the module looks for moving and
// static targets. Valid gates are 2 through 8. The module only accepts the
// gate limits together with the no-one duration, so the last-set duration is
// resent unchanged.
func (h *Handler) SetMaxDistanceGates(ctx context.Context, movingMax, staticMax uint8) error {
	if movingMax < 2 || movingMax > protocol.GateCount-1 || staticMax < 2 || staticMax > protocol.GateCount-1 {
		return fmt.Errorf("max gates must be in [2,%d], got moving=%d static=%d", protocol.GateCount-1, movingMax, staticMax)
	}
	if err := h.requireConfigMode("set max distance gates"); err != nil {
		return err
	}

	h.stateMu.Lock()
	noOne := h.noOneDuration
	h.stateMu.Unlock()

	if err := h.setGateAndNoOne(ctx, movingMax, staticMax, noOne); err != nil {
		return err
	}
	h.stateMu.Lock()
	h.maxMovingGate = movingMax
	h.maxStaticGate = staticMax
	h.stateMu.Unlock()
	return nil
}

// SetNoOneDuration sets how many seconds of absence the module waits before
// reporting no target. The last-set gate limits are resent unchanged.
func (h *Handler) SetNoOneDuration(ctx context.Context, seconds uint16) error {
	if err := h.requireConfigMode("set no-one duration"); err != nil {
		return err
	}

	h.stateMu.Lock()
	movingMax, staticMax := h.maxMovingGate, h.maxStaticGate
	h.stateMu.Unlock()

	if err := h.setGateAndNoOne(ctx, movingMax, staticMax, seconds); err != nil {
		return err
	}
	h.stateMu.Lock()
	h.noOneDuration = seconds
	h.stateMu.Unlock()
	return nil
}

func (h *Handler) setGateAndNoOne(ctx context.Context, movingMax, staticMax uint8, noOne uint16) error {
	var value []byte
	value = appendParam(value, paramMaxMovingGate, uint32(movingMax))
	value = appendParam(value, paramMaxStaticGate, uint32(staticMax))
	value = appendParam(value, paramNoOneDuration, uint32(noOne))
	_, err := h.run(ctx, protocol.CmdSetMaxGateAndNoOne, value)
	return err
}

// ReadParameters reads the module's current detection configuration: gate
// limits, per-gate sensitivities and the no-one duration. The handler's
// cached gate/no-one values are refreshed from the reply, so a subsequent
// partial setter resends what the module actually holds.
func (h *Handler) ReadParameters(ctx context.Context) (ModuleParameters, error) {
	if err := h.requireConfigMode("read parameters"); err != nil {
		return ModuleParameters{}, err
	}
	res, err := h.run(ctx, protocol.CmdReadParameters, nil)
	if err != nil {
		return ModuleParameters{}, err
	}

	// Body: 0xAA head, max gate N, configured max moving/static gates,
	// N+1 moving sensitivities, N+1 static sensitivities, no-one duration
	// u16 LE.
	body := res.Body
	if len(body) < 4 || body[0] != 0xAA {
		return ModuleParameters{}, fmt.Errorf("unexpected read-parameters reply (%d bytes)", len(body))
	}
	n := int(body[1])
	want := 4 + 2*(n+1) + 2
	if len(body) < want {
		return ModuleParameters{}, fmt.Errorf("read-parameters reply truncated: %d bytes, want %d", len(body), want)
	}

	params := ModuleParameters{
		MaxGate:           body[1],
		MaxMovingGate:     body[2],
		MaxStaticGate:     body[3],
		MovingSensitivity: append([]uint8(nil), body[4:4+n+1]...),
		StaticSensitivity: append([]uint8(nil), body[4+n+1:4+2*(n+1)]...),
		NoOneDurationS:    binary.LittleEndian.Uint16(body[4+2*(n+1):]),
	}

	h.stateMu.Lock()
	h.maxMovingGate = params.MaxMovingGate
	h.maxStaticGate = params.MaxStaticGate
	h.noOneDuration = params.NoOneDurationS
	h.stateMu.Unlock()
	return params, nil
}

// FactoryReset restores the module's factory configuration. Takes effect
// after a restart.
func (h *Handler) FactoryReset(ctx context.Context) error {
	if err := h.requireConfigMode("factory reset"); err != nil {
		return err
	}
	_, err := h.run(ctx, protocol.CmdFactoryReset, nil)
	return err
}

// Restart reboots the module. The reboot drops it out of configuration and
// engineering mode, so the connection state is reset.
func (h *Handler) Restart(ctx context.Context) error {
	if err := h.requireConfigMode("restart"); err != nil {
		return err
	}
	if _, err := h.run(ctx, protocol.CmdRestart, nil); err != nil {
		return err
	}
	h.resetState()
	return nil
}

// ReadFirmwareVersion reads the module's firmware version string.
func (h *Handler) ReadFirmwareVersion(ctx context.Context) (string, error) {
	if err := h.requireConfigMode("read firmware version"); err != nil {
		return "", err
	}
	res, err := h.run(ctx, protocol.CmdReadFirmware, nil)
	if err != nil {
		return "", err
	}

	// Body: firmware type u16, major version u16, build u32, all LE. The
	// major version renders as BCD-ish major.minor per the vendor tools.
	if len(res.Body) < 8 {
		return "", fmt.Errorf("unexpected firmware version reply (%d bytes)", len(res.Body))
	}
	major := binary.LittleEndian.Uint16(res.Body[2:4])
	build := binary.LittleEndian.Uint32(res.Body[4:8])
	return fmt.Sprintf("V%d.%02d.%08X", major>>8, major&0xFF, build), nil
}
