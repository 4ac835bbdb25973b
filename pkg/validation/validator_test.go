package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

type sampleRequest struct {
	ProviderID string `json:"provider_id" validate:"required"`
	Date       string `json:"date" validate:"required,date"`
	TimeLabel  string `json:"time_label" validate:"required,timelabel"`
	Medium     string `json:"medium" validate:"required,oneof=VIDEO AUDIO CHAT"`
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	t.Run("valid request passes", func(t *testing.T) {
		err := v.Validate(&sampleRequest{ProviderID: "p1", Date: "2025-03-10", TimeLabel: "09:00-10:00", Medium: "VIDEO"})
		assert.NoError(t, err)
	})

	t.Run("all failing fields are reported", func(t *testing.T) {
		err := v.Validate(&sampleRequest{Date: "10/03/2025", TimeLabel: "9-10", Medium: "FAX"})

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		assert.Contains(t, err.Error(), "provider_id is required")
		assert.Contains(t, err.Error(), "date must be a date in YYYY-MM-DD format")
		assert.Contains(t, err.Error(), "time_label must look like HH:MM-HH:MM")
		assert.Contains(t, err.Error(), "medium must be one of [VIDEO AUDIO CHAT]")
	})

	t.Run("hour 24 is not a valid label", func(t *testing.T) {
		err := v.Validate(&sampleRequest{ProviderID: "p1", Date: "2025-03-10", TimeLabel: "24:00-25:00", Medium: "CHAT"})
		assert.Error(t, err)
	})
}
