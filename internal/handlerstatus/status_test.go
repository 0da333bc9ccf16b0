package handlerstatus

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleStatus = `[{
	"status": {
		"status": "success",
		"operation": "Enable",
		"code": 0,
		"name": "Foo",
		"formattedMessage": {"lang": "en-US", "message": "ok"}
	}
}]`

func TestReadExtensionStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.status")
	if err := os.WriteFile(path, []byte(sampleStatus), 0600); err != nil {
		t.Fatal(err)
	}
	st, err := ReadExtensionStatus(path)
	if err != nil {
		t.Fatalf("ReadExtensionStatus: %v", err)
	}
	if st.Status != Success || st.Operation != "Enable" {
		t.Errorf("got %+v", st)
	}
}

func TestReadExtensionStatusMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.status")
	os.WriteFile(path, []byte(`[{"status":{"status":"bogus"}}]`), 0600)
	if _, err := ReadExtensionStatus(path); err == nil {
		t.Fatal("expected error for unknown status value")
	}
}

func TestReadExtensionStatusWithRetrySucceedsEventually(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.status")
	go func() {
		time.Sleep(20 * time.Millisecond)
		os.WriteFile(path, []byte(sampleStatus), 0600)
	}()
	st, err := ReadExtensionStatusWithRetry(path, 5, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadExtensionStatusWithRetry: %v", err)
	}
	if st.Status != Success {
		t.Errorf("got %+v", st)
	}
}

func TestReadHeartbeatMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.log")
	if _, err := ReadHeartbeat(path, time.Now()); err == nil {
		t.Fatal("expected MissingHeartbeat error")
	}
}

func TestReadHeartbeatStaleReturnsUnresponsiveWithoutParsing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.log")
	os.WriteFile(path, []byte(`not even json`), 0600)
	old := time.Now().Add(-20 * time.Minute)
	os.Chtimes(path, old, old)

	hb, err := ReadHeartbeat(path, time.Now())
	if err != nil {
		t.Fatalf("ReadHeartbeat: %v", err)
	}
	if hb.Status != "Unresponsive" || hb.Code != -1 {
		t.Errorf("got %+v, want synthetic Unresponsive", hb)
	}
}

func TestReadHeartbeatFreshParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.log")
	os.WriteFile(path, []byte(`[{"heartbeat":{"status":"Ready","code":0,"Message":"ok"}}]`), 0600)

	hb, err := ReadHeartbeat(path, time.Now())
	if err != nil {
		t.Fatalf("ReadHeartbeat: %v", err)
	}
	if hb.Status != "Ready" || hb.Message != "ok" {
		t.Errorf("got %+v", hb)
	}
}
