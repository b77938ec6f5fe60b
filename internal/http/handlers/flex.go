package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"contentfactory/internal/domain"
)

// flexInt accepts a JSON number or a numeric string. Workflow nodes often
// forward ids as strings.
type flexInt struct {
	Value int64
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexInt{}
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if strings.TrimSpace(s) == "" {
		*f = flexInt{}
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt{Value: v, Set: true}
		return nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	*f = flexInt{Value: int64(fl), Set: true}
	return nil
}

func (f flexInt) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Int64Ptr returns nil when the field was absent or not positive.
func (f flexInt) Int64Ptr() *int64 {
	if !f.Set || f.Value <= 0 {
		return nil
	}
	v := f.Value
	return &v
}

// IntPtr returns nil when the field was absent.
func (f flexInt) IntPtr() *int {
	if !f.Set {
		return nil
	}
	v := int(f.Value)
	return &v
}

func optString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// optStepStatus treats a blank status like an absent one.
func optStepStatus(s *string) *domain.StepStatus {
	v := optString(s)
	if v == nil {
		return nil
	}
	status := domain.StepStatus(*v)
	return &status
}
