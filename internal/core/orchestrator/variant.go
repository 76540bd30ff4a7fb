package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

const (
	VariantPrimary  = "primary"
	VariantOffCycle = "off_cycle"

	DefaultPrimaryPollInterval  = 5 * time.Second
	DefaultOffCyclePollInterval = 20 * time.Second
)

// Variant は通常ランと臨時ランの差分を表す設定です。
type Variant struct {
	Name                     string
	PollInterval             time.Duration
	AllowBackFromApproval    bool
	PartitionStartersLeavers bool
	KeyPrefix                string
	// OffCycle が true の場合は計算時に offCycle フラグを付け、ステージング要素を取り込み済みにします。
	OffCycle bool
}

// PrimaryVariant は通常ランの既定設定です。
func PrimaryVariant() Variant {
	return Variant{
		Name:                     VariantPrimary,
		PollInterval:             DefaultPrimaryPollInterval,
		AllowBackFromApproval:    true,
		PartitionStartersLeavers: true,
		KeyPrefix:                "payroll",
	}
}

// OffCycleVariant は臨時ランの既定設定です。
func OffCycleVariant() Variant {
	return Variant{
		Name:         VariantOffCycle,
		PollInterval: DefaultOffCyclePollInterval,
		KeyPrefix:    "offCycle",
		OffCycle:     true,
	}
}

func (v Variant) validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: name must be set", ErrInvalidVariant)
	}
	if v.PollInterval <= 0 {
		return fmt.Errorf("%w: %s poll interval must be positive", ErrInvalidVariant, v.Name)
	}
	if strings.TrimSpace(v.KeyPrefix) == "" {
		return fmt.Errorf("%w: %s key prefix must be set", ErrInvalidVariant, v.Name)
	}
	return nil
}
