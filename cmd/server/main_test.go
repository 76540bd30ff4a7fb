package main

import (
	"testing"
	"time"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/orchestrator"
	"github.com/ogurasousui/payroll-orchestrator/internal/platform/config"
	"github.com/stretchr/testify/require"
)

func TestBuildVariant(t *testing.T) {
	t.Parallel()

	yes, no := true, false

	primary := buildVariant(orchestrator.VariantPrimary, config.VariantConfig{
		PollInterval:             5 * time.Second,
		AllowBackFromApproval:    &yes,
		PartitionStartersLeavers: &yes,
		KeyPrefix:                "payroll",
	}, false)
	require.Equal(t, orchestrator.PrimaryVariant(), primary)

	offCycle := buildVariant(orchestrator.VariantOffCycle, config.VariantConfig{
		PollInterval:             20 * time.Second,
		AllowBackFromApproval:    &no,
		PartitionStartersLeavers: &no,
		KeyPrefix:                "offCycle",
	}, true)
	require.Equal(t, orchestrator.OffCycleVariant(), offCycle)
}
