package utils

import "testing"

func TestR2EnabledFalseWithoutInit(t *testing.T) {
	if R2Enabled() {
		t.Error("R2Enabled must report false before InitR2 has run")
	}
}
