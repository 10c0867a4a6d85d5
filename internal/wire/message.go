// Package wire defines the session-protocol message union (Message) and the
// rendezvous-protocol message union (RendezvousMessage), encoded with
// internal/wire/pbwire. Every field number below is this project's own
// assignment — see internal/wire/pbwire's doc comment for why.
package wire

import (
	"fmt"

	"github.com/meshdesk/client/internal/wire/pbwire"
)

// Message is the top-level session-protocol envelope: exactly one of these
// pointer fields is set per instance, mirroring a protobuf oneof.
type Message struct {
	VideoFrame          *VideoFrame
	AudioFrame          *AudioFrame
	Hash                *Hash
	LoginRequest        *LoginRequest
	LoginResponse       *LoginResponse
	CursorData          *CursorData
	CursorId            *CursorId
	CursorPosition      *CursorPosition
	Clipboard           *Clipboard
	MultiClipboards     *MultiClipboards
	Cliprdr             *Cliprdr
	FileAction          *FileAction
	FileResponse        *FileResponse
	Misc                *Misc
	TestDelay           *TestDelay
	MessageBox          *MessageBox
	VoiceCallRequest    *VoiceCallRequest
	VoiceCallResponse   *VoiceCallResponse
	PeerInfo            *PeerInfo
	PublicKey           *PublicKey
	SignedId            *SignedId
	KeyEvent            *KeyEvent
	MouseEvent          *MouseEvent
	PointerDeviceEvent  *PointerDeviceEvent
	Auth2FA             *Auth2FA
}

const (
	fieldVideoFrame = iota + 1
	fieldAudioFrame
	fieldHash
	fieldLoginRequest
	fieldLoginResponse
	fieldCursorData
	fieldCursorId
	fieldCursorPosition
	fieldClipboard
	fieldMultiClipboards
	fieldCliprdr
	fieldFileAction
	fieldFileResponse
	fieldMisc
	fieldTestDelay
	fieldMessageBox
	fieldVoiceCallRequest
	fieldVoiceCallResponse
	fieldPeerInfo
	fieldPublicKey
	fieldSignedId
	fieldKeyEvent
	fieldMouseEvent
	fieldPointerDeviceEvent
	fieldAuth2FA
)

// Marshal encodes m into its wire form.
func Marshal(m *Message) []byte {
	w := pbwire.NewWriter()
	switch {
	case m.VideoFrame != nil:
		w.WriteMessage(fieldVideoFrame, m.VideoFrame.marshal())
	case m.AudioFrame != nil:
		w.WriteMessage(fieldAudioFrame, m.AudioFrame.marshal())
	case m.Hash != nil:
		w.WriteMessage(fieldHash, m.Hash.marshal())
	case m.LoginRequest != nil:
		w.WriteMessage(fieldLoginRequest, m.LoginRequest.marshal())
	case m.LoginResponse != nil:
		w.WriteMessage(fieldLoginResponse, m.LoginResponse.marshal())
	case m.CursorData != nil:
		w.WriteMessage(fieldCursorData, m.CursorData.marshal())
	case m.CursorId != nil:
		w.WriteMessage(fieldCursorId, m.CursorId.marshal())
	case m.CursorPosition != nil:
		w.WriteMessage(fieldCursorPosition, m.CursorPosition.marshal())
	case m.Clipboard != nil:
		w.WriteMessage(fieldClipboard, m.Clipboard.marshal())
	case m.MultiClipboards != nil:
		w.WriteMessage(fieldMultiClipboards, m.MultiClipboards.marshal())
	case m.Cliprdr != nil:
		w.WriteMessage(fieldCliprdr, m.Cliprdr.marshal())
	case m.FileAction != nil:
		w.WriteMessage(fieldFileAction, m.FileAction.marshal())
	case m.FileResponse != nil:
		w.WriteMessage(fieldFileResponse, m.FileResponse.marshal())
	case m.Misc != nil:
		w.WriteMessage(fieldMisc, m.Misc.marshal())
	case m.TestDelay != nil:
		w.WriteMessage(fieldTestDelay, m.TestDelay.marshal())
	case m.MessageBox != nil:
		w.WriteMessage(fieldMessageBox, m.MessageBox.marshal())
	case m.VoiceCallRequest != nil:
		w.WriteMessage(fieldVoiceCallRequest, m.VoiceCallRequest.marshal())
	case m.VoiceCallResponse != nil:
		w.WriteMessage(fieldVoiceCallResponse, m.VoiceCallResponse.marshal())
	case m.PeerInfo != nil:
		w.WriteMessage(fieldPeerInfo, m.PeerInfo.marshal())
	case m.PublicKey != nil:
		w.WriteMessage(fieldPublicKey, m.PublicKey.marshal())
	case m.SignedId != nil:
		w.WriteMessage(fieldSignedId, m.SignedId.marshal())
	case m.KeyEvent != nil:
		w.WriteMessage(fieldKeyEvent, m.KeyEvent.marshal())
	case m.MouseEvent != nil:
		w.WriteMessage(fieldMouseEvent, m.MouseEvent.marshal())
	case m.PointerDeviceEvent != nil:
		w.WriteMessage(fieldPointerDeviceEvent, m.PointerDeviceEvent.marshal())
	case m.Auth2FA != nil:
		w.WriteMessage(fieldAuth2FA, m.Auth2FA.marshal())
	}
	return w.Bytes()
}

// Unmarshal decodes buf into a Message, populating exactly one variant field.
func Unmarshal(buf []byte) (*Message, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("wire: parse message: %w", err)
	}
	if len(fields) == 0 {
		return &Message{}, nil
	}
	f := fields[0]
	m := &Message{}
	var uerr error
	switch f.Number {
	case fieldVideoFrame:
		m.VideoFrame, uerr = unmarshalVideoFrame(f.Bytes)
	case fieldAudioFrame:
		m.AudioFrame, uerr = unmarshalAudioFrame(f.Bytes)
	case fieldHash:
		m.Hash, uerr = unmarshalHash(f.Bytes)
	case fieldLoginRequest:
		m.LoginRequest, uerr = unmarshalLoginRequest(f.Bytes)
	case fieldLoginResponse:
		m.LoginResponse, uerr = unmarshalLoginResponse(f.Bytes)
	case fieldCursorData:
		m.CursorData, uerr = unmarshalCursorData(f.Bytes)
	case fieldCursorId:
		m.CursorId, uerr = unmarshalCursorId(f.Bytes)
	case fieldCursorPosition:
		m.CursorPosition, uerr = unmarshalCursorPosition(f.Bytes)
	case fieldClipboard:
		m.Clipboard, uerr = unmarshalClipboard(f.Bytes)
	case fieldMultiClipboards:
		m.MultiClipboards, uerr = unmarshalMultiClipboards(f.Bytes)
	case fieldCliprdr:
		m.Cliprdr, uerr = unmarshalCliprdr(f.Bytes)
	case fieldFileAction:
		m.FileAction, uerr = unmarshalFileAction(f.Bytes)
	case fieldFileResponse:
		m.FileResponse, uerr = unmarshalFileResponse(f.Bytes)
	case fieldMisc:
		m.Misc, uerr = unmarshalMisc(f.Bytes)
	case fieldTestDelay:
		m.TestDelay, uerr = unmarshalTestDelay(f.Bytes)
	case fieldMessageBox:
		m.MessageBox, uerr = unmarshalMessageBox(f.Bytes)
	case fieldVoiceCallRequest:
		m.VoiceCallRequest, uerr = unmarshalVoiceCallRequest(f.Bytes)
	case fieldVoiceCallResponse:
		m.VoiceCallResponse, uerr = unmarshalVoiceCallResponse(f.Bytes)
	case fieldPeerInfo:
		m.PeerInfo, uerr = unmarshalPeerInfo(f.Bytes)
	case fieldPublicKey:
		m.PublicKey, uerr = unmarshalPublicKey(f.Bytes)
	case fieldSignedId:
		m.SignedId, uerr = unmarshalSignedId(f.Bytes)
	case fieldKeyEvent:
		m.KeyEvent, uerr = unmarshalKeyEvent(f.Bytes)
	case fieldMouseEvent:
		m.MouseEvent, uerr = unmarshalMouseEvent(f.Bytes)
	case fieldPointerDeviceEvent:
		m.PointerDeviceEvent, uerr = unmarshalPointerDeviceEvent(f.Bytes)
	case fieldAuth2FA:
		m.Auth2FA, uerr = unmarshalAuth2FA(f.Bytes)
	default:
		return nil, fmt.Errorf("wire: unknown message variant field %d", f.Number)
	}
	if uerr != nil {
		return nil, uerr
	}
	return m, nil
}

// --- VideoFrame ---

type VideoFrame struct {
	Display    int32
	Data       []byte
	IsKeyFrame bool
	Timestamp  int64
	Width      int32
	Height     int32
}

func (v *VideoFrame) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteVarint(1, uint64(v.Display))
	w.WriteBytes(2, v.Data)
	w.WriteBool(3, v.IsKeyFrame)
	w.WriteInt64(4, v.Timestamp)
	w.WriteVarint(5, uint64(v.Width))
	w.WriteVarint(6, uint64(v.Height))
	return w.Bytes()
}

func unmarshalVideoFrame(buf []byte) (*VideoFrame, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	v := &VideoFrame{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			v.Display = int32(f.Varint)
		case 2:
			v.Data = f.Bytes
		case 3:
			v.IsKeyFrame = f.Varint != 0
		case 4:
			v.Timestamp = int64(f.Varint)
		case 5:
			v.Width = int32(f.Varint)
		case 6:
			v.Height = int32(f.Varint)
		}
	}
	return v, nil
}

// --- AudioFrame ---

type AudioFrame struct {
	Data      []byte
	Timestamp int64
	SampleRate int32
	Channels   int32
}

func (a *AudioFrame) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteBytes(1, a.Data)
	w.WriteInt64(2, a.Timestamp)
	w.WriteVarint(3, uint64(a.SampleRate))
	w.WriteVarint(4, uint64(a.Channels))
	return w.Bytes()
}

func unmarshalAudioFrame(buf []byte) (*AudioFrame, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	a := &AudioFrame{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			a.Data = f.Bytes
		case 2:
			a.Timestamp = int64(f.Varint)
		case 3:
			a.SampleRate = int32(f.Varint)
		case 4:
			a.Channels = int32(f.Varint)
		}
	}
	return a, nil
}

// --- Hash ---

type Hash struct {
	Salt      []byte
	Challenge []byte
}

func (h *Hash) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteBytes(1, h.Salt)
	w.WriteBytes(2, h.Challenge)
	return w.Bytes()
}

func unmarshalHash(buf []byte) (*Hash, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	h := &Hash{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			h.Salt = f.Bytes
		case 2:
			h.Challenge = f.Bytes
		}
	}
	return h, nil
}

// --- LoginRequest ---

type FileTransferOption struct {
	Dir        string
	ShowHidden bool
}

type PortForwardOption struct {
	Host string
	Port int32
}

type LoginRequest struct {
	Username     string
	PasswordBytes []byte
	MyID         string
	MyName       string
	SessionID    uint64
	Version      string
	Option       *OptionMessage
	FileTransfer *FileTransferOption
	PortForward  *PortForwardOption
}

func (l *LoginRequest) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, l.Username)
	w.WriteBytes(2, l.PasswordBytes)
	w.WriteString(3, l.MyID)
	w.WriteString(4, l.MyName)
	w.WriteFixed64(5, l.SessionID)
	w.WriteString(6, l.Version)
	if l.Option != nil {
		w.WriteMessage(7, l.Option.marshal())
	}
	if l.FileTransfer != nil {
		ft := pbwire.NewWriter()
		ft.WriteString(1, l.FileTransfer.Dir)
		ft.WriteBool(2, l.FileTransfer.ShowHidden)
		w.WriteMessage(8, ft.Bytes())
	}
	if l.PortForward != nil {
		pf := pbwire.NewWriter()
		pf.WriteString(1, l.PortForward.Host)
		pf.WriteVarint(2, uint64(l.PortForward.Port))
		w.WriteMessage(9, pf.Bytes())
	}
	return w.Bytes()
}

func unmarshalLoginRequest(buf []byte) (*LoginRequest, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	l := &LoginRequest{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			l.Username = f.String()
		case 2:
			l.PasswordBytes = f.Bytes
		case 3:
			l.MyID = f.String()
		case 4:
			l.MyName = f.String()
		case 5:
			l.SessionID = f.Varint
		case 6:
			l.Version = f.String()
		case 7:
			opt, err := unmarshalOptionMessage(f.Bytes)
			if err != nil {
				return nil, err
			}
			l.Option = opt
		case 8:
			sub, err := pbwire.Parse(f.Bytes)
			if err != nil {
				return nil, err
			}
			ft := &FileTransferOption{}
			for _, sf := range sub {
				switch sf.Number {
				case 1:
					ft.Dir = sf.String()
				case 2:
					ft.ShowHidden = sf.Varint != 0
				}
			}
			l.FileTransfer = ft
		case 9:
			sub, err := pbwire.Parse(f.Bytes)
			if err != nil {
				return nil, err
			}
			pf := &PortForwardOption{}
			for _, sf := range sub {
				switch sf.Number {
				case 1:
					pf.Host = sf.String()
				case 2:
					pf.Port = int32(sf.Varint)
				}
			}
			l.PortForward = pf
		}
	}
	return l, nil
}

// OptionMessage carries non-default toggles, image quality, fps and codec
// capability, sent standalone (Misc) or embedded in LoginRequest.
type OptionMessage struct {
	ImageQuality       string
	CustomImageQuality int32
	CustomFPS          int32
	Toggles            map[string]bool
	SupportedCodecs    []string
}

func (o *OptionMessage) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, o.ImageQuality)
	w.WriteVarint(2, uint64(o.CustomImageQuality))
	w.WriteVarint(3, uint64(o.CustomFPS))
	for k, v := range o.Toggles {
		if !v {
			continue
		}
		w.WriteString(4, k)
	}
	for _, c := range o.SupportedCodecs {
		w.WriteString(5, c)
	}
	return w.Bytes()
}

func unmarshalOptionMessage(buf []byte) (*OptionMessage, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	o := &OptionMessage{Toggles: map[string]bool{}}
	for _, f := range fields {
		switch f.Number {
		case 1:
			o.ImageQuality = f.String()
		case 2:
			o.CustomImageQuality = int32(f.Varint)
		case 3:
			o.CustomFPS = int32(f.Varint)
		case 4:
			o.Toggles[f.String()] = true
		case 5:
			o.SupportedCodecs = append(o.SupportedCodecs, f.String())
		}
	}
	return o, nil
}
