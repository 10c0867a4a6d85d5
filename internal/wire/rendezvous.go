package wire

import (
	"fmt"

	"github.com/meshdesk/client/internal/wire/pbwire"
)

// RendezvousMessage is the message union exchanged with a rendezvous server
// over WebSocket during peer discovery and relay negotiation (C2).
type RendezvousMessage struct {
	PunchHoleRequest  *PunchHoleRequest
	PunchHoleResponse *PunchHoleResponse
	RequestRelay      *RequestRelay
	RelayResponse     *RelayResponse
}

const (
	fieldPunchHoleRequest = iota + 1
	fieldPunchHoleResponse
	fieldRequestRelay
	fieldRelayResponse
)

// MarshalRendezvous encodes m into its wire form.
func MarshalRendezvous(m *RendezvousMessage) []byte {
	w := pbwire.NewWriter()
	switch {
	case m.PunchHoleRequest != nil:
		w.WriteMessage(fieldPunchHoleRequest, m.PunchHoleRequest.marshal())
	case m.PunchHoleResponse != nil:
		w.WriteMessage(fieldPunchHoleResponse, m.PunchHoleResponse.marshal())
	case m.RequestRelay != nil:
		w.WriteMessage(fieldRequestRelay, m.RequestRelay.marshal())
	case m.RelayResponse != nil:
		w.WriteMessage(fieldRelayResponse, m.RelayResponse.marshal())
	}
	return w.Bytes()
}

// UnmarshalRendezvous decodes buf into a RendezvousMessage.
func UnmarshalRendezvous(buf []byte) (*RendezvousMessage, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("wire: parse rendezvous message: %w", err)
	}
	if len(fields) == 0 {
		return &RendezvousMessage{}, nil
	}
	f := fields[0]
	m := &RendezvousMessage{}
	var uerr error
	switch f.Number {
	case fieldPunchHoleRequest:
		m.PunchHoleRequest, uerr = unmarshalPunchHoleRequest(f.Bytes)
	case fieldPunchHoleResponse:
		m.PunchHoleResponse, uerr = unmarshalPunchHoleResponse(f.Bytes)
	case fieldRequestRelay:
		m.RequestRelay, uerr = unmarshalRequestRelay(f.Bytes)
	case fieldRelayResponse:
		m.RelayResponse, uerr = unmarshalRelayResponse(f.Bytes)
	default:
		return nil, fmt.Errorf("wire: unknown rendezvous variant field %d", f.Number)
	}
	if uerr != nil {
		return nil, uerr
	}
	return m, nil
}

// NatType mirrors the rendezvous protocol's coarse NAT classification, used
// by the orchestrator (C4) to decide whether a direct dial is worth
// attempting before falling back to relay.
type NatType int32

const (
	NatUnknown NatType = iota
	NatAsymmetric
	NatSymmetric
)

// ConnType distinguishes a plain remote-desktop session from a port-forward
// tunnel at the rendezvous layer, since the two get different timeout
// budgets.
type ConnType int32

const (
	ConnDefault ConnType = iota
	ConnFileTransfer
	ConnPortForward
	ConnRDP
)

type PunchHoleRequest struct {
	PeerID     string
	Token      []byte
	NatType    NatType
	LicenceKey string
	ConnType   ConnType
}

func (p *PunchHoleRequest) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, p.PeerID)
	w.WriteBytes(2, p.Token)
	w.WriteVarint(3, uint64(p.NatType))
	w.WriteString(4, p.LicenceKey)
	w.WriteVarint(5, uint64(p.ConnType))
	return w.Bytes()
}

func unmarshalPunchHoleRequest(buf []byte) (*PunchHoleRequest, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	p := &PunchHoleRequest{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			p.PeerID = f.String()
		case 2:
			p.Token = f.Bytes
		case 3:
			p.NatType = NatType(f.Varint)
		case 4:
			p.LicenceKey = f.String()
		case 5:
			p.ConnType = ConnType(f.Varint)
		}
	}
	return p, nil
}

// PunchHoleFailure enumerates the reasons a rendezvous server refuses to
// broker a hole-punch, surfaced verbatim to the caller so the orchestrator
// can decide whether a retry is worthwhile.
type PunchHoleFailure int32

const (
	FailureNone PunchHoleFailure = iota
	FailureIDNotExist
	FailureOffline
	FailureLicenseMismatch
	FailureLicenseOverUse
)

func (f PunchHoleFailure) String() string {
	switch f {
	case FailureIDNotExist:
		return "ID_NOT_EXIST"
	case FailureOffline:
		return "OFFLINE"
	case FailureLicenseMismatch:
		return "LICENSE_MISMATCH"
	case FailureLicenseOverUse:
		return "LICENSE_OVERUSE"
	default:
		return "NONE"
	}
}

// PunchHoleResponse carries either a success (socket address + peer's
// signed identity key, for C3) or a failure reason.
type PunchHoleResponse struct {
	Failure     PunchHoleFailure
	SocketAddr  string
	PeerNatType NatType
	IsLocal     bool
	SignedIDPk  []byte
	RelayHint   string
}

func (p *PunchHoleResponse) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteVarint(1, uint64(p.Failure))
	w.WriteString(2, p.SocketAddr)
	w.WriteVarint(3, uint64(p.PeerNatType))
	w.WriteBool(4, p.IsLocal)
	w.WriteBytes(5, p.SignedIDPk)
	w.WriteString(6, p.RelayHint)
	return w.Bytes()
}

func unmarshalPunchHoleResponse(buf []byte) (*PunchHoleResponse, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	p := &PunchHoleResponse{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			p.Failure = PunchHoleFailure(f.Varint)
		case 2:
			p.SocketAddr = f.String()
		case 3:
			p.PeerNatType = NatType(f.Varint)
		case 4:
			p.IsLocal = f.Varint != 0
		case 5:
			p.SignedIDPk = f.Bytes
		case 6:
			p.RelayHint = f.String()
		}
	}
	return p, nil
}

// RequestRelay asks the rendezvous server to arrange a relay session after
// direct hole-punching has failed.
type RequestRelay struct {
	PeerID     string
	Token      []byte
	RelayServer string
	ConnType   ConnType
}

func (r *RequestRelay) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, r.PeerID)
	w.WriteBytes(2, r.Token)
	w.WriteString(3, r.RelayServer)
	w.WriteVarint(4, uint64(r.ConnType))
	return w.Bytes()
}

func unmarshalRequestRelay(buf []byte) (*RequestRelay, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	r := &RequestRelay{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			r.PeerID = f.String()
		case 2:
			r.Token = f.Bytes
		case 3:
			r.RelayServer = f.String()
		case 4:
			r.ConnType = ConnType(f.Varint)
		}
	}
	return r, nil
}

// RelayResponse tells the requester which relay server to connect to and
// under what session UUID, plus the relay's public key for C3.
type RelayResponse struct {
	UUID        string
	RelayServer string
	PK          []byte
}

func (r *RelayResponse) marshal() []byte {
	w := pbwire.NewWriter()
	w.WriteString(1, r.UUID)
	w.WriteString(2, r.RelayServer)
	w.WriteBytes(3, r.PK)
	return w.Bytes()
}

func unmarshalRelayResponse(buf []byte) (*RelayResponse, error) {
	fields, err := pbwire.Parse(buf)
	if err != nil {
		return nil, err
	}
	r := &RelayResponse{}
	for _, f := range fields {
		switch f.Number {
		case 1:
			r.UUID = f.String()
		case 2:
			r.RelayServer = f.String()
		case 3:
			r.PK = f.Bytes
		}
	}
	return r, nil
}
