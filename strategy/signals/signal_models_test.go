package signals

import "testing"

func TestLastConfirmedBefore(t *testing.T) {
	sf := NewFrame(10)
	if sf.LastConfirmedBefore(10) != -1 {
		t.Error("Expected -1 on an empty frame")
	}

	sf.BuyConfirmed[2] = true
	sf.SellConfirmed[6] = true

	if got := sf.LastConfirmedBefore(10); got != 6 {
		t.Errorf("Expected 6, got %d", got)
	}
	if got := sf.LastConfirmedBefore(6); got != 2 {
		t.Errorf("Expected 2 before index 6, got %d", got)
	}
	if got := sf.LastConfirmedBefore(2); got != -1 {
		t.Errorf("Expected -1 before index 2, got %d", got)
	}
}

func TestNewFrameLen(t *testing.T) {
	sf := NewFrame(5)
	if sf.Len() != 5 {
		t.Errorf("Expected length 5, got %d", sf.Len())
	}
	for _, col := range [][]bool{sf.BuySetup, sf.SellSetup, sf.BuyTrigger, sf.SellTrigger, sf.BuyConfirmed, sf.SellConfirmed} {
		if len(col) != 5 {
			t.Error("All columns must share the frame length")
		}
	}
}
