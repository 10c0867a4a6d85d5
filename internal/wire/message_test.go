package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestMarshalUnmarshalVideoFrame(t *testing.T) {
	in := &Message{VideoFrame: &VideoFrame{
		Display: 1, Data: []byte{1, 2, 3}, IsKeyFrame: true, Timestamp: 100, Width: 1920, Height: 1080,
	}}
	out, err := Unmarshal(Marshal(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.VideoFrame == nil {
		t.Fatal("expected VideoFrame variant")
	}
	if out.VideoFrame.Display != 1 || !bytes.Equal(out.VideoFrame.Data, []byte{1, 2, 3}) ||
		!out.VideoFrame.IsKeyFrame || out.VideoFrame.Timestamp != 100 ||
		out.VideoFrame.Width != 1920 || out.VideoFrame.Height != 1080 {
		t.Fatalf("round trip mismatch: %+v", out.VideoFrame)
	}
}

func TestMarshalUnmarshalLoginRequest(t *testing.T) {
	in := &Message{LoginRequest: &LoginRequest{
		Username:      "alice",
		PasswordBytes: []byte{9, 9, 9},
		MyID:          "123456789",
		MyName:        "alice-laptop",
		SessionID:     42,
		Version:       "1.3.0",
		Option: &OptionMessage{
			ImageQuality:       "balanced",
			CustomImageQuality: 80,
			CustomFPS:          30,
			Toggles:            map[string]bool{"show_remote_cursor": true},
			SupportedCodecs:    []string{"h264", "vp9"},
		},
		FileTransfer: &FileTransferOption{Dir: "/home/alice", ShowHidden: true},
		PortForward:  &PortForwardOption{Host: "127.0.0.1", Port: 3389},
	}}
	out, err := Unmarshal(Marshal(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	lr := out.LoginRequest
	if lr == nil {
		t.Fatal("expected LoginRequest variant")
	}
	if lr.Username != "alice" || lr.MyID != "123456789" || lr.SessionID != 42 {
		t.Fatalf("LoginRequest mismatch: %+v", lr)
	}
	if lr.Option == nil || lr.Option.ImageQuality != "balanced" || !lr.Option.Toggles["show_remote_cursor"] {
		t.Fatalf("Option mismatch: %+v", lr.Option)
	}
	if lr.FileTransfer == nil || lr.FileTransfer.Dir != "/home/alice" || !lr.FileTransfer.ShowHidden {
		t.Fatalf("FileTransfer mismatch: %+v", lr.FileTransfer)
	}
	if lr.PortForward == nil || lr.PortForward.Port != 3389 {
		t.Fatalf("PortForward mismatch: %+v", lr.PortForward)
	}
}

func TestMarshalUnmarshalLoginResponseSuccess(t *testing.T) {
	in := &Message{LoginResponse: &LoginResponse{
		PeerInfo: &PeerInfo{
			Username: "bob",
			Hostname: "bob-desktop",
			Platform: "linux",
			Version:  "1.3.0",
			Displays: []DisplayInfo{{Width: 1920, Height: 1080, Name: "eDP-1"}},
			Features: []string{"file_transfer"},
		},
	}}
	out, err := Unmarshal(Marshal(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.LoginResponse == nil || out.LoginResponse.PeerInfo == nil {
		t.Fatal("expected LoginResponse.PeerInfo")
	}
	if out.LoginResponse.PeerInfo.Username != "bob" || len(out.LoginResponse.PeerInfo.Displays) != 1 {
		t.Fatalf("mismatch: %+v", out.LoginResponse.PeerInfo)
	}
}

func TestMarshalUnmarshalLoginResponseError(t *testing.T) {
	in := &Message{LoginResponse: &LoginResponse{Error: "wrong password"}}
	out, err := Unmarshal(Marshal(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.LoginResponse == nil || out.LoginResponse.Error != "wrong password" || out.LoginResponse.PeerInfo != nil {
		t.Fatalf("mismatch: %+v", out.LoginResponse)
	}
}

func TestMarshalUnmarshalMiscCloseReasonEmptyString(t *testing.T) {
	in := &Message{Misc: &Misc{HasCloseReason: true, CloseReason: ""}}
	out, err := Unmarshal(Marshal(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.Misc.HasCloseReason || out.Misc.CloseReason != "" {
		t.Fatalf("empty close reason did not round trip: %+v", out.Misc)
	}
}

func TestMarshalUnmarshalMiscSwitchDisplayZero(t *testing.T) {
	in := &Message{Misc: &Misc{HasSwitchDisplay: true, SwitchDisplay: 0}}
	out, err := Unmarshal(Marshal(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.Misc.HasSwitchDisplay || out.Misc.SwitchDisplay != 0 {
		t.Fatalf("switch display 0 did not round trip: %+v", out.Misc)
	}
}

func TestMarshalUnmarshalFileActionVariants(t *testing.T) {
	cases := []*FileAction{
		{JobID: 1, Send: &FileActionSend{Path: "/tmp/a", IsDir: false, ShowHidden: true}},
		{JobID: 1, Resume: &FileActionResume{Offset: 4096}},
		{JobID: 1, Cancel: &FileActionCancel{}},
		{JobID: 2, RemoveFile: "/tmp/b"},
		{JobID: 3, CreateDir: "/tmp/newdir"},
		{JobID: 4, RenameFrom: "/tmp/old", RenameTo: "/tmp/new"},
	}
	for _, c := range cases {
		out, err := Unmarshal(Marshal(&Message{FileAction: c}))
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if out.FileAction == nil || out.FileAction.JobID != c.JobID {
			t.Fatalf("mismatch for %+v: got %+v", c, out.FileAction)
		}
	}
}

func TestMarshalUnmarshalFileResponseDigest(t *testing.T) {
	in := &Message{FileResponse: &FileResponse{
		JobID:  7,
		Digest: &FileDigest{FileNum: 2, Size: 1024, Sum: []byte{0xde, 0xad}},
	}}
	out, err := Unmarshal(Marshal(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.FileResponse == nil || out.FileResponse.Digest == nil || out.FileResponse.Digest.Size != 1024 {
		t.Fatalf("mismatch: %+v", out.FileResponse)
	}
}

func TestMarshalUnmarshalPublicKeyAndSignedId(t *testing.T) {
	out1, err := Unmarshal(Marshal(&Message{PublicKey: &PublicKey{
		AsymmetricValue: []byte{1, 2}, SymmetricValue: []byte{3, 4},
	}}))
	if err != nil {
		t.Fatalf("Unmarshal PublicKey: %v", err)
	}
	if out1.PublicKey == nil || !bytes.Equal(out1.PublicKey.SymmetricValue, []byte{3, 4}) {
		t.Fatalf("PublicKey mismatch: %+v", out1.PublicKey)
	}

	out2, err := Unmarshal(Marshal(&Message{SignedId: &SignedId{ID: "123456789", PublicKey: []byte{5, 6}}}))
	if err != nil {
		t.Fatalf("Unmarshal SignedId: %v", err)
	}
	if out2.SignedId == nil || out2.SignedId.ID != "123456789" {
		t.Fatalf("SignedId mismatch: %+v", out2.SignedId)
	}
}

func TestMarshalUnmarshalInputEvents(t *testing.T) {
	out1, err := Unmarshal(Marshal(&Message{KeyEvent: &KeyEvent{Code: 65, Down: true, Chr: 'a'}}))
	if err != nil {
		t.Fatalf("Unmarshal KeyEvent: %v", err)
	}
	if out1.KeyEvent == nil || out1.KeyEvent.Code != 65 || !out1.KeyEvent.Down {
		t.Fatalf("KeyEvent mismatch: %+v", out1.KeyEvent)
	}

	out2, err := Unmarshal(Marshal(&Message{MouseEvent: &MouseEvent{Mask: 1, X: 100, Y: 200}}))
	if err != nil {
		t.Fatalf("Unmarshal MouseEvent: %v", err)
	}
	if out2.MouseEvent == nil || out2.MouseEvent.X != 100 || out2.MouseEvent.Y != 200 {
		t.Fatalf("MouseEvent mismatch: %+v", out2.MouseEvent)
	}
}

func TestMarshalUnmarshalAuth2FA(t *testing.T) {
	out, err := Unmarshal(Marshal(&Message{Auth2FA: &Auth2FA{Code: "123456", TrustThisDevice: true}}))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Auth2FA == nil || out.Auth2FA.Code != "123456" || !out.Auth2FA.TrustThisDevice {
		t.Fatalf("Auth2FA mismatch: %+v", out.Auth2FA)
	}
}

func TestUnmarshalEmptyBufferReturnsEmptyMessage(t *testing.T) {
	m, err := Unmarshal(nil)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.VideoFrame != nil || m.LoginRequest != nil {
		t.Fatalf("expected zero-value Message, got %+v", m)
	}
}

func TestUnmarshalUnknownVariantErrors(t *testing.T) {
	var buf []byte
	buf = binary.AppendUvarint(buf, uint64(200)<<3) // bogus field number, varint wire type
	buf = binary.AppendUvarint(buf, 0)
	if _, err := Unmarshal(buf); err == nil {
		t.Fatal("expected error for unknown message variant")
	}
}
