package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FID is a Farcaster id as clients send it: a JSON number or a string.
type FID string

func (f *FID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("fid: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("fid %s is not an integer", n)
	}
	*f = FID(n.String())
	return nil
}

// Missing mirrors a falsy check: empty and zero ids are both absent.
func (f FID) Missing() bool {
	return f == "" || f == "0"
}

func (f FID) String() string {
	return string(f)
}

func parseFID(s string) (int64, bool) {
	fid, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || fid <= 0 {
		return 0, false
	}
	return fid, true
}
