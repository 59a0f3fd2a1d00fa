package limits

import (
	"errors"
	"testing"
)

func TestValidateDatagram(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{"empty", 0, ErrDatagramEmpty},
		{"one byte", 1, nil},
		{"exact", ControlDatagramSize, nil},
		{"over", ControlDatagramSize + 1, ErrDatagramTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatagram(make([]byte, tt.size))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDatagram(%d) = %v, want %v", tt.size, err, tt.wantErr)
			}
		})
	}
}

func TestValidateStreamCount(t *testing.T) {
	for _, n := range []int{1, 2, MaxTalkerStreams} {
		if err := ValidateStreamCount(n); err != nil {
			t.Errorf("ValidateStreamCount(%d) = %v, want nil", n, err)
		}
	}
	for _, n := range []int{-1, 0, MaxTalkerStreams + 1} {
		if err := ValidateStreamCount(n); !errors.Is(err, ErrStreamCountInvalid) {
			t.Errorf("ValidateStreamCount(%d) = %v, want ErrStreamCountInvalid", n, err)
		}
	}
}

func TestValidateAcceptedCapacity(t *testing.T) {
	if err := ValidateAcceptedCapacity(2, DefaultAcceptedStreams); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateAcceptedCapacity(3, DefaultAcceptedStreams); !errors.Is(err, ErrStreamCountInvalid) {
		t.Errorf("expected overflow error, got %v", err)
	}
	if err := ValidateAcceptedCapacity(1, 0); !errors.Is(err, ErrStreamCountInvalid) {
		t.Errorf("expected capacity error, got %v", err)
	}
	if err := ValidateAcceptedCapacity(1, MaxAcceptedStreams+1); !errors.Is(err, ErrStreamCountInvalid) {
		t.Errorf("expected capacity error, got %v", err)
	}
}

func TestValidateFrameSize(t *testing.T) {
	if err := ValidateFrameSize(98); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateFrameSize(0); !errors.Is(err, ErrFrameSizeInvalid) {
		t.Errorf("expected error for 0, got %v", err)
	}
	if err := ValidateFrameSize(MaxFrameSize + 1); !errors.Is(err, ErrFrameSizeInvalid) {
		t.Errorf("expected error for oversize, got %v", err)
	}
}
