package transport

import "testing"

func TestErrorMessageFormatting(t *testing.T) {
	e := newError(FlowControlError, "exceeded 100 bytes")
	if e.Error() != "flow_control_error: exceeded 100 bytes" {
		t.Fatalf("Error() = %q", e.Error())
	}
	bare := newError(ProtocolViolation, "")
	if bare.Error() != "protocol_violation" {
		t.Fatalf("Error() = %q, want bare code name with no message", bare.Error())
	}
}

func TestErrorCodeStringUnknownAndCrypto(t *testing.T) {
	if s := errorCodeString(uint64(cryptoErrorFirst) + 42); s != "crypto_error_42" {
		t.Fatalf("errorCodeString(crypto) = %q", s)
	}
	if s := errorCodeString(0xffff); s != "unknown_error_65535" {
		t.Fatalf("errorCodeString(unknown) = %q", s)
	}
}

func TestAppErrorIsMarkedApplication(t *testing.T) {
	e := newAppError(7, "bye")
	if !e.Application {
		t.Fatal("newAppError should set Application=true")
	}
	if e.Code != 7 {
		t.Fatalf("Code = %d, want 7", e.Code)
	}
}
