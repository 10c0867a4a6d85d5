package wire

import "github.com/meshdesk/client/internal/wire/pbwire"

// --- LoginResponse ---

type PeerInfo struct {
	Username        string
	Hostname        string
	Platform        string
	Version         string
	Displays        []DisplayInfo
	Features        []string
	CurrentDisplay  int32
	CurrentSessionID uint64
}

type DisplayInfo struct {
	Width  int32
	Height int32
	Name   string
}

// LoginResponse is a oneof of {PeerInfo success, Error}.
type LoginResponse struct {
	PeerInfo *PeerInfo
	Error    string
}

func (l *LoginResponse) marshal() []byte {
	w := pbwire.NewWriter()
	if l.PeerInfo != nil {
		w.WriteMessage(1, l.PeerInfo.marshal())
	}
	w.WriteString(2, l.Error)
	return w.Bytes()
}

func (p *PeerInfo) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, p.Username)
	w.WriteString(2, p.Hostname)
	w.WriteString(3, p.Platform)
	w.WriteString(4, p.Version)
	for _, d := range p.Displays {
		dw := pbwire.NewWriter()
		dw.WriteVarint(1, uint64(d.Width))
		dw.WriteVarint(2, uint64(d.Height))
		dw.WriteString(3, d.Name)
		w.WriteMessage(5, dw.Bytes())
	}
	for _, f := range p.Features {
		w.WriteString(6, f)
	}
	w.WriteVarint(7, uint64(p.CurrentDisplay))
	w.WriteFixed64(8, p.CurrentSessionID)
	return w.Bytes()
}

func unmarshalPeerInfo(buf []byte) (*PeerInfo, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	p := &PeerInfo{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			p.Username = f.String()
		case 2:
			p.Hostname = f.String()
		case 3:
			p.Platform = f.String()
		case 4:
			p.Version = f.String()
		case 5:
			sub, err := pbwire.Parse(f.Bytes)
			if err != nil {
				return nil, err
			}
			d := DisplayInfo{}
			for _, sf := range sub {
				switch sf.Number {
				case 1:
					d.Width = int32(sf.Varint)
				case 2:
					d.Height = int32(sf.Varint)
				case 3:
					d.Name = sf.String()
				}
			}
			p.Displays = append(p.Displays, d)
		case 6:
			p.Features = append(p.Features, f.String())
		case 7:
			p.CurrentDisplay = int32(f.Varint)
		case 8:
			p.CurrentSessionID = f.Varint
		}
	}
	return p, nil
}

func unmarshalLoginResponse(buf []byte) (*LoginResponse, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	l := &LoginResponse{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			pi, err := unmarshalPeerInfo(f.Bytes)
			if err != nil {
				return nil, err
			}
			l.PeerInfo = pi
		case 2:
			l.Error = f.String()
		}
	}
	return l, nil
}

// --- Cursor messages ---

type CursorData struct {
	ID     uint64
	Data   []byte
	Width  int32
	Height int32
	HotX   int32
	HotY   int32
}

func (c *CursorData) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteFixed64(1, c.ID)
	w.WriteBytes(2, c.Data)
	w.WriteVarint(3, uint64(c.Width))
	w.WriteVarint(4, uint64(c.Height))
	w.WriteVarint(5, uint64(c.HotX))
	w.WriteVarint(6, uint64(c.HotY))
	return w.Bytes()
}

func unmarshalCursorData(buf []byte) (*CursorData, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	c := &CursorData{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			c.ID = f.Varint
		case 2:
			c.Data = f.Bytes
		case 3:
			c.Width = int32(f.Varint)
		case 4:
			c.Height = int32(f.Varint)
		case 5:
			c.HotX = int32(f.Varint)
		case 6:
			c.HotY = int32(f.Varint)
		}
	}
	return c, nil
}

type CursorId struct{ ID uint64 }

func (c *CursorId) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteFixed64(1, c.ID)
	return w.Bytes()
}

func unmarshalCursorId(buf []byte) (*CursorId, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	c := &CursorId{}
	for _, f := range fields {
		if f.Number == 1 {
			c.ID = f.Varint
		}
	}
	return c, nil
}

type CursorPosition struct {
	X int32
	Y int32
}

func (c *CursorPosition) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteVarint(1, uint64(c.X))
	w.WriteVarint(2, uint64(c.Y))
	return w.Bytes()
}

func unmarshalCursorPosition(buf []byte) (*CursorPosition, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	c := &CursorPosition{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			c.X = int32(f.Varint)
		case 2:
			c.Y = int32(f.Varint)
		}
	}
	return c, nil
}

// --- Clipboard ---

type Clipboard struct {
	Format  string
	Content []byte
}

func (c *Clipboard) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, c.Format)
	w.WriteBytes(2, c.Content)
	return w.Bytes()
}

func unmarshalClipboard(buf []byte) (*Clipboard, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	c := &Clipboard{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			c.Format = f.String()
		case 2:
			c.Content = f.Bytes
		}
	}
	return c, nil
}

type MultiClipboards struct {
	Clipboards []Clipboard
}

func (m *MultiClipboards) marshal() []byte {
	w := pbwire.NewWriter()
	for _, c := range m.Clipboards {
		w.WriteMessage(1, c.marshal())
	}
	return w.Bytes()
}

func unmarshalMultiClipboards(buf []byte) (*MultiClipboards, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	m := &MultiClipboards{}
	for _, f := range fields {
		if f.Number == 1 {
			c, err := unmarshalClipboard(f.Bytes)
			if err != nil {
				return nil, err
			}
			m.Clipboards = append(m.Clipboards, *c)
		}
	}
	return m, nil
}

// Cliprdr carries a file-clipboard (drag-and-drop) message; only forwarded
// when file-transfer permission is granted.
type Cliprdr struct {
	FileList []string
}

func (c *Cliprdr) marshal() []byte {
	w := pbwire.NewWriter()
	for _, f := range c.FileList {
		w.WriteString(1, f)
	}
	return w.Bytes()
}

func unmarshalCliprdr(buf []byte) (*Cliprdr, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	c := &Cliprdr{}
	for _, f := range fields {
		if f.Number == 1 {
			c.FileList = append(c.FileList, f.String())
		}
	}
	return c, nil
}

// --- FileAction / FileResponse ---

type FileAction struct {
	JobID      int64
	Send       *FileActionSend
	Resume     *FileActionResume
	Cancel     *FileActionCancel
	RemoveFile string
	RemoveDir  string
	CreateDir  string
	RenameFrom string
	RenameTo   string
	Skip       *FileActionSkip
	ConfirmDelete *FileActionConfirmDelete
}

type FileActionSend struct {
	Path       string
	IsDir      bool
	ShowHidden bool
}

type FileActionResume struct{ Offset int64 }
type FileActionCancel struct{}

// FileActionSkip acknowledges a digest check that found the local and
// remote files identical: the sender should skip re-transferring fileNum.
type FileActionSkip struct{ FileNum int32 }

// FileActionConfirmDelete acknowledges a pending delete-confirmation prompt.
type FileActionConfirmDelete struct{}

func (a *FileAction) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteInt64(1, a.JobID)
	if a.Send != nil {
		sw := pbwire.NewWriter()
		sw.WriteString(1, a.Send.Path)
		sw.WriteBool(2, a.Send.IsDir)
		sw.WriteBool(3, a.Send.ShowHidden)
		w.WriteMessage(2, sw.Bytes())
	}
	if a.Resume != nil {
		rw := pbwire.NewWriter()
		rw.WriteInt64(1, a.Resume.Offset)
		w.WriteMessage(3, rw.Bytes())
	}
	if a.Cancel != nil {
		w.WriteMessage(4, []byte{0})
	}
	w.WriteString(5, a.RemoveFile)
	w.WriteString(6, a.RemoveDir)
	w.WriteString(7, a.CreateDir)
	w.WriteString(8, a.RenameFrom)
	w.WriteString(9, a.RenameTo)
	if a.Skip != nil {
		sw := pbwire.NewWriter()
		sw.WriteVarint(1, uint64(a.Skip.FileNum))
		w.WriteMessage(10, sw.Bytes())
	}
	if a.ConfirmDelete != nil {
		w.WriteMessage(11, []byte{0})
	}
	return w.Bytes()
}

func unmarshalFileAction(buf []byte) (*FileAction, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	a := &FileAction{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			a.JobID = int64(f.Varint)
		case 2:
			sub, err := pbwire.Parse(f.Bytes)
			if err != nil {
				return nil, err
			}
			s := &FileActionSend{}
			for _, sf := range sub {
				switch sf.Number {
				case 1:
					s.Path = sf.String()
				case 2:
					s.IsDir = sf.Varint != 0
				case 3:
					s.ShowHidden = sf.Varint != 0
				}
			}
			a.Send = s
		case 3:
			sub, err := pbwire.Parse(f.Bytes)
			if err != nil {
				return nil, err
			}
			r := &FileActionResume{}
			for _, sf := range sub {
				if sf.Number == 1 {
					r.Offset = int64(sf.Varint)
				}
			}
			a.Resume = r
		case 4:
			a.Cancel = &FileActionCancel{}
		case 5:
			a.RemoveFile = f.String()
		case 6:
			a.RemoveDir = f.String()
		case 7:
			a.CreateDir = f.String()
		case 8:
			a.RenameFrom = f.String()
		case 9:
			a.RenameTo = f.String()
		case 10:
			sub, err := pbwire.Parse(f.Bytes)
			if err != nil {
				return nil, err
			}
			sk := &FileActionSkip{}
			for _, sf := range sub {
				if sf.Number == 1 {
					sk.FileNum = int32(sf.Varint)
				}
			}
			a.Skip = sk
		case 11:
			a.ConfirmDelete = &FileActionConfirmDelete{}
		}
	}
	return a, nil
}

// FileResponse carries the peer's reply to a file action: a digest check
// result, a data block, or an error.
type FileResponse struct {
	JobID      int64
	Digest     *FileDigest
	Block      *FileBlock
	Error      string
	BlockCount int64
}

type FileDigest struct {
	FileNum int32
	Size    int64
	Sum     []byte
}

type FileBlock struct {
	FileNum int32
	Data    []byte
	Offset  int64
}

func (r *FileResponse) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteInt64(1, r.JobID)
	if r.Digest != nil {
		dw := pbwire.NewWriter()
		dw.WriteVarint(1, uint64(r.Digest.FileNum))
		dw.WriteInt64(2, r.Digest.Size)
		dw.WriteBytes(3, r.Digest.Sum)
		w.WriteMessage(2, dw.Bytes())
	}
	if r.Block != nil {
		bw := pbwire.NewWriter()
		bw.WriteVarint(1, uint64(r.Block.FileNum))
		bw.WriteBytes(2, r.Block.Data)
		bw.WriteInt64(3, r.Block.Offset)
		w.WriteMessage(3, bw.Bytes())
	}
	w.WriteString(4, r.Error)
	w.WriteInt64(5, r.BlockCount)
	return w.Bytes()
}

func unmarshalFileResponse(buf []byte) (*FileResponse, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	r := &FileResponse{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			r.JobID = int64(f.Varint)
		case 2:
			sub, err := pbwire.Parse(f.Bytes)
			if err != nil {
				return nil, err
			}
			d := &FileDigest{}
			for _, sf := range sub {
				switch sf.Number {
				case 1:
					d.FileNum = int32(sf.Varint)
				case 2:
					d.Size = int64(sf.Varint)
				case 3:
					d.Sum = sf.Bytes
				}
			}
			r.Digest = d
		case 3:
			sub, err := pbwire.Parse(f.Bytes)
			if err != nil {
				return nil, err
			}
			b := &FileBlock{}
			for _, sf := range sub {
				switch sf.Number {
				case 1:
					b.FileNum = int32(sf.Varint)
				case 2:
					b.Data = sf.Bytes
				case 3:
					b.Offset = int64(sf.Varint)
				}
			}
			r.Block = b
		case 4:
			r.Error = f.String()
		case 5:
			r.BlockCount = int64(f.Varint)
		}
	}
	return r, nil
}

// --- Misc ---

type Misc struct {
	PermissionInfo   *PermissionInfo
	SwitchDisplay    int32
	HasSwitchDisplay bool
	CloseReason      string
	HasCloseReason   bool
	ElevationResponse string
	SupportedEncoding []string
	Option           *OptionMessage
}

type PermissionInfo struct {
	FileTransferEnabled bool
	FileTransferRevoked bool
	KeyboardEnabled     bool
	ClipboardEnabled    bool
}

func (m *Misc) marshal() []byte {
	w := pbwire.NewWriter()
	if m.PermissionInfo != nil {
		pw := pbwire.NewWriter()
		pw.WriteBool(1, m.PermissionInfo.FileTransferEnabled)
		pw.WriteBool(2, m.PermissionInfo.FileTransferRevoked)
		pw.WriteBool(3, m.PermissionInfo.KeyboardEnabled)
		pw.WriteBool(4, m.PermissionInfo.ClipboardEnabled)
		w.WriteMessage(1, pw.Bytes())
	}
	if m.HasSwitchDisplay {
		w.WriteVarint(2, uint64(m.SwitchDisplay)+1)
	}
	if m.HasCloseReason {
		w.WriteString(3, orDash(m.CloseReason))
	}
	w.WriteString(4, m.ElevationResponse)
	for _, e := range m.SupportedEncoding {
		w.WriteString(5, e)
	}
	if m.Option != nil {
		w.WriteMessage(6, m.Option.marshal())
	}
	return w.Bytes()
}

// orDash lets CloseReason round-trip an intentionally-empty string (a
// length-delimited field would otherwise vanish when empty, per proto3
// zero-value rules, and the session loop distinguishes "close, no reason"
// from "no close message at all").
func orDash(s string) string {
	if s == "" {
		return "\x00"
	}
	return s
}

func unmarshalMisc(buf []byte) (*Misc, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	m := &Misc{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			sub, err := pbwire.Parse(f.Bytes)
			if err != nil {
				return nil, err
			}
			p := &PermissionInfo{}
			for _, sf := range sub {
				switch sf.Number {
				case 1:
					p.FileTransferEnabled = sf.Varint != 0
				case 2:
					p.FileTransferRevoked = sf.Varint != 0
				case 3:
					p.KeyboardEnabled = sf.Varint != 0
				case 4:
					p.ClipboardEnabled = sf.Varint != 0
				}
			}
			m.PermissionInfo = p
		case 2:
			m.HasSwitchDisplay = true
			m.SwitchDisplay = int32(f.Varint) - 1
		case 3:
			m.HasCloseReason = true
			s := f.String()
			if s == "\x00" {
				s = ""
			}
			m.CloseReason = s
		case 4:
			m.ElevationResponse = f.String()
		case 5:
			m.SupportedEncoding = append(m.SupportedEncoding, f.String())
		case 6:
			opt, err := unmarshalOptionMessage(f.Bytes)
			if err != nil {
				return nil, err
			}
			m.Option = opt
		}
	}
	return m, nil
}

// --- TestDelay ---

type TestDelay struct {
	Timestamp  int64
	FromClient bool
	LastDelay  int32
}

func (t *TestDelay) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteInt64(1, t.Timestamp)
	w.WriteBool(2, t.FromClient)
	w.WriteVarint(3, uint64(t.LastDelay))
	return w.Bytes()
}

func unmarshalTestDelay(buf []byte) (*TestDelay, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	t := &TestDelay{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			t.Timestamp = int64(f.Varint)
		case 2:
			t.FromClient = f.Varint != 0
		case 3:
			t.LastDelay = int32(f.Varint)
		}
	}
	return t, nil
}

// --- MessageBox ---

type MessageBox struct {
	Kind string
	Title string
	Text string
}

func (b *MessageBox) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, b.Kind)
	w.WriteString(2, b.Title)
	w.WriteString(3, b.Text)
	return w.Bytes()
}

func unmarshalMessageBox(buf []byte) (*MessageBox, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	b := &MessageBox{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			b.Kind = f.String()
		case 2:
			b.Title = f.String()
		case 3:
			b.Text = f.String()
		}
	}
	return b, nil
}

// --- Voice call ---

type VoiceCallRequest struct {
	IsConnect      bool
	RequestTimestamp uint64
}

func (v *VoiceCallRequest) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteBool(1, v.IsConnect)
	w.WriteFixed64(2, v.RequestTimestamp)
	return w.Bytes()
}

func unmarshalVoiceCallRequest(buf []byte) (*VoiceCallRequest, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	v := &VoiceCallRequest{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			v.IsConnect = f.Varint != 0
		case 2:
			v.RequestTimestamp = f.Varint
		}
	}
	return v, nil
}

type VoiceCallResponse struct {
	Accepted         bool
	RequestTimestamp uint64
}

func (v *VoiceCallResponse) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteBool(1, v.Accepted)
	w.WriteFixed64(2, v.RequestTimestamp)
	return w.Bytes()
}

func unmarshalVoiceCallResponse(buf []byte) (*VoiceCallResponse, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	v := &VoiceCallResponse{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			v.Accepted = f.Varint != 0
		case 2:
			v.RequestTimestamp = f.Varint
		}
	}
	return v, nil
}

// --- Handshake messages (C3) ---

type PublicKey struct {
	AsymmetricValue []byte
	SymmetricValue  []byte
}

func (p *PublicKey) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteBytes(1, p.AsymmetricValue)
	w.WriteBytes(2, p.SymmetricValue)
	return w.Bytes()
}

func unmarshalPublicKey(buf []byte) (*PublicKey, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	p := &PublicKey{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			p.AsymmetricValue = f.Bytes
		case 2:
			p.SymmetricValue = f.Bytes
		}
	}
	return p, nil
}

type SignedId struct {
	ID        string
	PublicKey []byte
}

func (s *SignedId) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, s.ID)
	w.WriteBytes(2, s.PublicKey)
	return w.Bytes()
}

func unmarshalSignedId(buf []byte) (*SignedId, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	s := &SignedId{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			s.ID = f.String()
		case 2:
			s.PublicKey = f.Bytes
		}
	}
	return s, nil
}

// --- Input events ---

type KeyEvent struct {
	Code  int32
	Down  bool
	Chr   int32
}

func (k *KeyEvent) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteVarint(1, uint64(k.Code))
	w.WriteBool(2, k.Down)
	w.WriteVarint(3, uint64(k.Chr))
	return w.Bytes()
}

func unmarshalKeyEvent(buf []byte) (*KeyEvent, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	k := &KeyEvent{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			k.Code = int32(f.Varint)
		case 2:
			k.Down = f.Varint != 0
		case 3:
			k.Chr = int32(f.Varint)
		}
	}
	return k, nil
}

type MouseEvent struct {
	Mask int32
	X    int32
	Y    int32
}

func (m *MouseEvent) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteVarint(1, uint64(m.Mask))
	w.WriteVarint(2, uint64(m.X))
	w.WriteVarint(3, uint64(m.Y))
	return w.Bytes()
}

func unmarshalMouseEvent(buf []byte) (*MouseEvent, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	m := &MouseEvent{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			m.Mask = int32(f.Varint)
		case 2:
			m.X = int32(f.Varint)
		case 3:
			m.Y = int32(f.Varint)
		}
	}
	return m, nil
}

type PointerDeviceEvent struct {
	TouchID int64
	X       float64
	Y       float64
}

func (p *PointerDeviceEvent) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteInt64(1, p.TouchID)
	w.WriteFixed64(2, uint64(p.X*1000))
	w.WriteFixed64(3, uint64(p.Y*1000))
	return w.Bytes()
}

func unmarshalPointerDeviceEvent(buf []byte) (*PointerDeviceEvent, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	p := &PointerDeviceEvent{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			p.TouchID = int64(f.Varint)
		case 2:
			p.X = float64(f.Varint) / 1000
		case 3:
			p.Y = float64(f.Varint) / 1000
		}
	}
	return p, nil
}

// Auth2FA carries a two-factor code submission.
type Auth2FA struct {
	Code       string
	TrustThisDevice bool
}

func (a *Auth2FA) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, a.Code)
	w.WriteBool(2, a.TrustThisDevice)
	return w.Bytes()
}

func unmarshalAuth2FA(buf []byte) (*Auth2FA, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	a := &Auth2FA{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			a.Code = f.String()
		case 2:
			a.TrustThisDevice = f.Varint != 0
		}
	}
	return a, nil
}
