package transport

import "testing"

func TestSendBufferPopSendThenAck(t *testing.T) {
	var b sendBuffer
	if err := b.write([]byte("hello"), true); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, offset, fin := b.popSend(3)
	if string(data) != "hel" || offset != 0 || fin {
		t.Fatalf("popSend(3) = %q, %d, %v", data, offset, fin)
	}
	data, offset, fin = b.popSend(10)
	if string(data) != "lo" || offset != 3 || !fin {
		t.Fatalf("popSend(10) = %q, %d, %v, want \"lo\", 3, fin true", data, offset, fin)
	}
	_, finOffset, fin := b.popSend(10)
	if fin || finOffset != 5 {
		t.Fatalf("popSend at tail = offset %d fin %v, want offset 5 fin false (fin already sent)", finOffset, fin)
	}
	b.ack(0, 5)
	b.ack(5, 0)
	if !b.complete() {
		t.Fatal("complete() = false after acking all data and fin")
	}
}

func TestSendBufferResendTakesPriority(t *testing.T) {
	var b sendBuffer
	b.write([]byte("abcdef"), false)
	b.popSend(6) // send everything once
	b.push([]byte("cd"), 2, false)
	data, offset, _ := b.popSend(10)
	if string(data) != "cd" || offset != 2 {
		t.Fatalf("popSend after push = %q at %d, want \"cd\" at 2", data, offset)
	}
}

func TestSendBufferWriteAfterFinErrors(t *testing.T) {
	var b sendBuffer
	b.write([]byte("a"), true)
	if err := b.write([]byte("b"), false); err == nil {
		t.Fatal("write after fin should error")
	}
}

func TestRecvBufferOutOfOrderReassembly(t *testing.T) {
	var b recvBuffer
	if err := b.push([]byte("World"), 5, true); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := b.push([]byte("Hello"), 0, false); err != nil {
		t.Fatalf("push: %v", err)
	}
	out := make([]byte, 10)
	n := b.read(out)
	if string(out[:n]) != "HelloWorld" {
		t.Fatalf("read = %q, want HelloWorld", out[:n])
	}
	if !b.atFinal() {
		t.Fatal("atFinal() = false after reading up to the final size")
	}
}

func TestRecvBufferDuplicateIgnored(t *testing.T) {
	var b recvBuffer
	b.push([]byte("abc"), 0, false)
	out := make([]byte, 3)
	b.read(out)
	if err := b.push([]byte("abc"), 0, false); err != nil {
		t.Fatalf("push duplicate: %v", err)
	}
	if n := b.readableLen(); n != 0 {
		t.Fatalf("readableLen() = %d after duplicate push, want 0", n)
	}
}

func TestRecvBufferConflictingFinalSize(t *testing.T) {
	var b recvBuffer
	b.push([]byte("abc"), 0, true) // final size 3
	if err := b.push([]byte("d"), 3, true); err == nil {
		t.Fatal("push with conflicting final size should error")
	}
}

func TestRecvBufferResetShrinksFinalSizeErrors(t *testing.T) {
	var b recvBuffer
	b.push([]byte("abcde"), 0, false)
	if _, err := b.reset(2); err == nil {
		t.Fatal("reset to a final size smaller than data already received should error")
	}
}
