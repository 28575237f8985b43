package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type timeProvider struct{}

// timeRanges are the integer range keys of a time policy, with the
// accessor for the corresponding component of the evaluation time.
var timeRanges = []struct {
	start, end string
	value      func(time.Time) int
}{
	{"dayMonth", "dayMonthEnd", func(t time.Time) int { return t.Day() }},
	{"month", "monthEnd", func(t time.Time) int { return int(t.Month()) }},
	{"year", "yearEnd", func(t time.Time) int { return t.Year() }},
	{"hour", "hourEnd", func(t time.Time) int { return t.Hour() }},
	{"minute", "minuteEnd", func(t time.Time) int { return t.Minute() }},
}

func (timeProvider) Validate(p *Policy) error {
	for _, key := range []string{"notBefore", "notOnOrAfter", "nbf", "noa"} {
		if v := p.Config[key]; v != "" {
			if _, err := time.Parse(DateTimeLayout, v); err != nil {
				return fmt.Errorf("%w: policy %q config %s: %v", ErrInvalidPolicy, p.Name, key, err)
			}
		}
	}
	for _, r := range timeRanges {
		if _, _, _, err := timeRange(p, r.start, r.end); err != nil {
			return err
		}
	}
	return nil
}

// timeRange returns the inclusive range configured at the given keys. If
// end is unset the range holds only start.
func timeRange(p *Policy, startKey, endKey string) (int, int, bool, error) {
	startValue := p.Config[startKey]
	if startValue == "" {
		return 0, 0, false, nil
	}
	start, err := strconv.Atoi(startValue)
	if err != nil {
		return 0, 0, false, fmt.Errorf("%w: policy %q config %s: %v",
			ErrInvalidPolicy, p.Name, startKey, err)
	}
	end := start
	if endValue := p.Config[endKey]; endValue != "" {
		end, err = strconv.Atoi(endValue)
		if err != nil {
			return 0, 0, false, fmt.Errorf("%w: policy %q config %s: %v",
				ErrInvalidPolicy, p.Name, endKey, err)
		}
	}
	return start, end, true, nil
}

// configTime returns the time configured at the first set key.
func configTime(p *Policy, loc *time.Location, keys ...string) (time.Time, bool, error) {
	for _, key := range keys {
		if v := p.Config[key]; v != "" {
			t, err := time.ParseInLocation(DateTimeLayout, v, loc)
			if err != nil {
				return time.Time{}, false, fmt.Errorf("%w: policy %q config %s: %v",
					ErrInvalidPolicy, p.Name, key, err)
			}
			return t, true, nil
		}
	}
	return time.Time{}, false, nil
}

func (timeProvider) Evaluate(_ context.Context, e *Evaluation, p *Policy) (bool, error) {
	now := e.Context().Now()
	notBefore, ok, err := configTime(p, now.Location(), "notBefore", "nbf")
	if err != nil {
		return false, err
	}
	if ok && now.Before(notBefore) {
		return false, nil
	}
	notOnOrAfter, ok, err := configTime(p, now.Location(), "notOnOrAfter", "noa")
	if err != nil {
		return false, err
	}
	if ok && !now.Before(notOnOrAfter) {
		return false, nil
	}
	for _, r := range timeRanges {
		start, end, ok, err := timeRange(p, r.start, r.end)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if v := r.value(now); v < start || v > end {
			return false, nil
		}
	}
	return true, nil
}

type regexProvider struct{}

func (regexProvider) compile(p *Policy) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + p.Config["pattern"] + ")$")
	if err != nil {
		return nil, fmt.Errorf("%w: policy %q pattern: %v", ErrInvalidPolicy, p.Name, err)
	}
	return re, nil
}

func (r regexProvider) Validate(p *Policy) error {
	if p.Config["targetClaim"] == "" {
		return fmt.Errorf("%w: policy %q has no targetClaim", ErrInvalidPolicy, p.Name)
	}
	_, err := r.compile(p)
	return err
}

func (r regexProvider) Evaluate(_ context.Context, e *Evaluation, p *Policy) (bool, error) {
	re, err := r.compile(p)
	if err != nil {
		return false, err
	}
	target := p.Config["targetClaim"]
	var values []string
	if p.Config["targetContextAttributes"] == "true" {
		values = e.Context().Attributes[target]
	} else if identity := e.Context().Identity; identity != nil {
		values = claimStrings(identity.Claims, target)
	}
	for _, v := range values {
		if re.MatchString(v) {
			return true, nil
		}
	}
	return false, nil
}

// associatedProvider evaluates aggregate policies and permissions by
// combining their associated policies.
type associatedProvider struct{}

func (associatedProvider) Validate(*Policy) error {
	return nil
}

func (associatedProvider) Evaluate(ctx context.Context, e *Evaluation, p *Policy) (bool, error) {
	return e.Associated(ctx, p)
}

// jsonString formats a scalar claim value as it appears in JSON.
func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
