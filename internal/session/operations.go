package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/plaf203-core/internal/feeding"
	"github.com/nerrad567/plaf203-core/internal/protocol"
)

// FirmwareUpgrade describes an OTA image.
type FirmwareUpgrade struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Version string `json:"version"`
	MD5     string `json:"md5"`
}

// UpdateSettings writes the present fields of changes to the device.
//
// The device confirms with an ATTR_SET_SERVICE reply and reports the new
// values through ATTR_PUSH_EVENT; the attribute cache is updated from
// those, not from changes.
//
// Returns:
//   - ErrNoChanges if changes is empty
//   - ErrReadOnlyAttribute if changes names a field the device only reports
//   - a send error if the request could not be published
func (e *Engine) UpdateSettings(ctx context.Context, changes protocol.AttributeSet) error {
	if changes.Empty() {
		return ErrNoChanges
	}
	if ro := changes.ReadOnly(); len(ro) > 0 {
		return fmt.Errorf("%w: %s", ErrReadOnlyAttribute, strings.Join(ro, ", "))
	}

	e.lock()
	defer e.unlock()
	return e.send(ctx, protocol.NewAttrSetServiceOut(changes, &e.audio))
}

// RefreshAttributes asks the device for a full attribute snapshot.
func (e *Engine) RefreshAttributes(ctx context.Context) error {
	e.lock()
	defer e.unlock()
	return e.send(ctx, &protocol.AttrGetServiceOut{})
}

// FoodPlans returns the current plans in order.
func (e *Engine) FoodPlans() []feeding.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plans.Plans().Plans()
}

// SetFoodPlans replaces every plan, persists the set and pushes it to the device.
func (e *Engine) SetFoodPlans(ctx context.Context, plans []feeding.Plan) error {
	set := feeding.NewPlanSet(plans...)
	if err := set.Validate(); err != nil {
		return err
	}

	e.lock()
	defer e.unlock()
	return e.commitPlans(ctx, set)
}

// SetFoodPlan adds a plan or replaces the plan with the same ID.
func (e *Engine) SetFoodPlan(ctx context.Context, plan feeding.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	e.lock()
	defer e.unlock()

	set := feeding.NewPlanSet(e.plans.Plans().Plans()...)
	set.Set(plan)
	return e.commitPlans(ctx, set)
}

// RemoveFoodPlan deletes the plan with id.
//
// Returns feeding.ErrPlanNotFound if no plan has that ID.
func (e *Engine) RemoveFoodPlan(ctx context.Context, id int) error {
	e.lock()
	defer e.unlock()

	set := feeding.NewPlanSet(e.plans.Plans().Plans()...)
	if err := set.Remove(id); err != nil {
		return err
	}
	return e.commitPlans(ctx, set)
}

// commitPlans persists set, adopts it and pushes it to the device.
// Callers hold the lock.
func (e *Engine) commitPlans(ctx context.Context, set feeding.PlanSet) error {
	if e.store != nil {
		if err := e.store.SaveFoodPlans(ctx, set.Plans()); err != nil {
			return fmt.Errorf("saving food plans: %w", err)
		}
	}
	e.plans.Replace(set)
	return e.send(ctx, e.plans.Push(e.cfg.Now()))
}

// ManualFeed dispenses grains portions now. A value below 1 uses the
// stored manual feed quantity.
func (e *Engine) ManualFeed(ctx context.Context, grains int) error {
	e.lock()
	defer e.unlock()

	if grains < 1 {
		grains = e.manualQty
	}
	e.logger.Info("manual feed requested", "serial", e.cfg.Serial, "grains", grains)
	return e.send(ctx, &protocol.ManualFeedingServiceOut{GrainNum: grains})
}

// ManualFeedQuantity returns the stored manual feed quantity.
func (e *Engine) ManualFeedQuantity() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manualQty
}

// SetManualFeedQuantity stores the default quantity for ManualFeed.
func (e *Engine) SetManualFeedQuantity(ctx context.Context, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store != nil {
		if err := e.store.SaveManualFeedQuantity(ctx, qty); err != nil {
			return fmt.Errorf("saving manual feed quantity: %w", err)
		}
	}
	e.manualQty = qty
	return nil
}

// Reboot restarts the device. It goes offline once it confirms.
func (e *Engine) Reboot(ctx context.Context) error {
	return e.request(ctx, &protocol.DeviceRebootOut{})
}

// FactoryReset restores the device to factory settings.
func (e *Engine) FactoryReset(ctx context.Context) error {
	return e.request(ctx, &protocol.RestoreOut{})
}

// ReconnectWifi makes the device drop and rejoin its Wi-Fi network.
func (e *Engine) ReconnectWifi(ctx context.Context) error {
	return e.request(ctx, &protocol.WifiReconnectServiceOut{})
}

// FormatSDCard erases the device's SD card.
func (e *Engine) FormatSDCard(ctx context.Context) error {
	return e.request(ctx, &protocol.InitializeSdCardServiceOut{})
}

// UpgradeFirmware asks the device to fetch and install an OTA image.
func (e *Engine) UpgradeFirmware(ctx context.Context, fw FirmwareUpgrade) error {
	if fw.URL == "" || fw.Version == "" {
		return fmt.Errorf("%w: firmware url and version are required", ErrInvalidArgument)
	}
	return e.request(ctx, &protocol.OtaUpgradeOut{
		UpgradeType:           fw.Type,
		URL:                   fw.URL,
		TargetSoftwareVersion: fw.Version,
		MD5:                   fw.MD5,
	})
}

// ChangeWifi moves the device to another network.
func (e *Engine) ChangeWifi(ctx context.Context, ssid, password string) error {
	if ssid == "" {
		return fmt.Errorf("%w: ssid is required", ErrInvalidArgument)
	}
	return e.request(ctx, &protocol.WifiChangeServiceOut{SSID: ssid, Password: password})
}

func (e *Engine) request(ctx context.Context, msg protocol.Outgoing) error {
	e.lock()
	defer e.unlock()

	e.logger.Info("device request", "serial", e.cfg.Serial, "command", msg.Command())
	return e.send(ctx, msg)
}
