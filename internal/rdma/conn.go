package rdma

// #cgo LDFLAGS: -lrdmacm -libverbs
// #include <errno.h>
// #include <stdlib.h>
// #include <string.h>
// #include <rdma/rdma_cma.h>
// #include <rdma/rdma_verbs.h>
//
// static int get_errno(void) {
//     return errno;
// }
//
// // librdmacm's posting and polling entry points are static inlines in
// // rdma_verbs.h; wrap them so cgo has symbols to call.
// static struct ibv_mr *pp_reg_msgs(struct rdma_cm_id *id, void *addr, size_t length) {
//     return rdma_reg_msgs(id, addr, length);
// }
//
// static int pp_post_send(struct rdma_cm_id *id, void *addr, size_t length, struct ibv_mr *mr) {
//     return rdma_post_send(id, NULL, addr, length, mr, 0);
// }
//
// static int pp_post_recv(struct rdma_cm_id *id, void *addr, size_t length, struct ibv_mr *mr) {
//     return rdma_post_recv(id, NULL, addr, length, mr);
// }
//
// static int pp_get_send_comp(struct rdma_cm_id *id, struct ibv_wc *wc) {
//     return rdma_get_send_comp(id, wc);
// }
//
// static int pp_get_recv_comp(struct rdma_cm_id *id, struct ibv_wc *wc) {
//     return rdma_get_recv_comp(id, wc);
// }
import "C"

import (
	"errors"
	"syscall"
	"unsafe"

	"github.com/rs/zerolog/log"

	"github.com/rdmalab/pingpong/internal/buffer"
	"github.com/rdmalab/pingpong/internal/transfer"
)

// maxInlineData caps the inline-data threshold requested for the queue
// pair. Buffers smaller than this are sent inline by the provider.
const maxInlineData = 16

// inlineThreshold clamps the inline request to the buffer size so the
// provider never reserves more inline room than a message can use.
func inlineThreshold(size int) int {
	if size < maxInlineData {
		return size
	}
	return maxInlineData
}

// Conn is a reliable point-to-point connection over the RDMA connection
// manager. It owns the memory registration for the transfer buffer but
// borrows the buffer itself; releasing the buffer stays with the
// caller.
type Conn struct {
	role  transfer.Role
	buf   *buffer.Buffer
	state State

	listenID *C.struct_rdma_cm_id
	id       *C.struct_rdma_cm_id
	mr       *C.struct_ibv_mr
}

// State reports the connection's current setup state.
func (c *Conn) State() State { return c.state }

// Listen resolves the passive address on port, waits for exactly one
// peer, registers buf, posts the first receive, and accepts. The
// receive is posted before accept so the peer's opening send can never
// race ahead of it.
func Listen(port string, buf *buffer.Buffer) (*Conn, error) {
	c := &Conn{role: transfer.Responder, buf: buf}

	res, err := resolve("", port, true)
	if err != nil {
		return nil, c.fail("getaddrinfo", err)
	}
	defer C.rdma_freeaddrinfo(res)
	c.state = StateAddressResolved

	listenID, err := createEndpoint(res, buf.Size())
	if err != nil {
		return nil, c.fail("createEndpoint", err)
	}
	c.listenID = listenID
	c.state = StateEndpointCreated

	if ret := C.rdma_listen(c.listenID, 0); ret != 0 {
		return nil, c.fail("listen", syscall.Errno(C.get_errno()))
	}
	c.state = StateListening
	log.Info().Str("port", port).Msg("Listening for peer")

	if ret := C.rdma_get_request(c.listenID, &c.id); ret != 0 {
		return nil, c.fail("getRequest", syscall.Errno(C.get_errno()))
	}

	if err := c.bindBuffer(); err != nil {
		return nil, c.fail("registerMemory", err)
	}
	if err := c.PostRecv(); err != nil {
		return nil, c.fail("postReceive", err)
	}

	if ret := C.rdma_accept(c.id, nil); ret != 0 {
		return nil, c.fail("accept", syscall.Errno(C.get_errno()))
	}
	c.state = StateAccepted
	log.Debug().Msg("Peer accepted")

	c.state = StateReady
	log.Info().Stringer("role", c.role).Msg("Connection established")
	return c, nil
}

// Dial resolves peer:port, creates the endpoint, connects, and then
// registers buf. Registration can wait until after connect here: the
// initiator's first operation is a send, so nothing races it.
func Dial(peer, port string, buf *buffer.Buffer) (*Conn, error) {
	c := &Conn{role: transfer.Initiator, buf: buf}

	res, err := resolve(peer, port, false)
	if err != nil {
		return nil, c.fail("getaddrinfo", err)
	}
	defer C.rdma_freeaddrinfo(res)
	c.state = StateAddressResolved

	id, err := createEndpoint(res, buf.Size())
	if err != nil {
		return nil, c.fail("createEndpoint", err)
	}
	c.id = id
	c.state = StateEndpointCreated

	c.state = StateConnecting
	if ret := C.rdma_connect(c.id, nil); ret != 0 {
		return nil, c.fail("connect", syscall.Errno(C.get_errno()))
	}
	c.state = StateConnected

	if err := c.bindBuffer(); err != nil {
		return nil, c.fail("registerMemory", err)
	}
	c.state = StateReady
	log.Info().Stringer("role", c.role).Str("peer", peer).Msg("Connection established")
	return c, nil
}

// resolve runs rdma_getaddrinfo for the given address. An empty host
// with passive set resolves the local listen address.
func resolve(host, port string, passive bool) (*C.struct_rdma_addrinfo, error) {
	var hints C.struct_rdma_addrinfo
	hints.ai_port_space = C.RDMA_PS_TCP
	if passive {
		hints.ai_flags = C.RAI_PASSIVE
	}

	var cHost *C.char
	if host != "" {
		cHost = C.CString(host)
		defer C.free(unsafe.Pointer(cHost))
	}
	cPort := C.CString(port)
	defer C.free(unsafe.Pointer(cPort))

	var res *C.struct_rdma_addrinfo
	if ret := C.rdma_getaddrinfo(cHost, cPort, &hints, &res); ret != 0 {
		return nil, syscall.Errno(C.get_errno())
	}
	return res, nil
}

// createEndpoint allocates a connection identifier with a queue pair
// sized for strict ping-pong: one outstanding send, one outstanding
// receive, one scatter/gather entry, and a completion for every send.
func createEndpoint(res *C.struct_rdma_addrinfo, size int) (*C.struct_rdma_cm_id, error) {
	var attr C.struct_ibv_qp_init_attr
	attr.cap.max_send_wr = 1
	attr.cap.max_recv_wr = 1
	attr.cap.max_send_sge = 1
	attr.cap.max_recv_sge = 1
	attr.cap.max_inline_data = C.uint32_t(inlineThreshold(size))
	attr.sq_sig_all = 1

	var id *C.struct_rdma_cm_id
	if ret := C.rdma_create_ep(&id, res, nil, &attr); ret != 0 {
		return nil, syscall.Errno(C.get_errno())
	}
	return id, nil
}

// bindBuffer registers the transfer buffer with the connection's
// protection domain. The buffer is an mmap'ed region outside the Go
// heap, so the device holding on to it is safe.
func (c *Conn) bindBuffer() error {
	data := c.buf.Bytes()
	mr := C.pp_reg_msgs(c.id, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	if mr == nil {
		return syscall.Errno(C.get_errno())
	}
	c.mr = mr
	c.state = StateBufferBound
	return nil
}

// fail marks the connection failed, tears down whatever was acquired,
// and wraps the cause with the stage it happened at.
func (c *Conn) fail(stage string, err error) error {
	c.state = StateFailed
	c.Close()
	return &SetupError{Stage: stage, Err: err}
}

// Buffer returns the registered transfer buffer.
func (c *Conn) Buffer() []byte { return c.buf.Bytes() }

// PostSend posts a send of the full buffer.
func (c *Conn) PostSend() error {
	data := c.buf.Bytes()
	if ret := C.pp_post_send(c.id, unsafe.Pointer(&data[0]), C.size_t(len(data)), c.mr); ret != 0 {
		return syscall.Errno(C.get_errno())
	}
	return nil
}

// PostRecv posts a receive for the full buffer.
func (c *Conn) PostRecv() error {
	data := c.buf.Bytes()
	if ret := C.pp_post_recv(c.id, unsafe.Pointer(&data[0]), C.size_t(len(data)), c.mr); ret != 0 {
		return syscall.Errno(C.get_errno())
	}
	return nil
}

// AwaitSend blocks until the outstanding send completes.
func (c *Conn) AwaitSend() error {
	var wc C.struct_ibv_wc
	n := C.pp_get_send_comp(c.id, &wc)
	if n < 0 {
		return syscall.Errno(C.get_errno())
	}
	if n == 0 {
		return errors.New("send completion poll returned without a completion")
	}
	return checkStatus(&wc)
}

// AwaitRecv blocks until the outstanding receive completes.
func (c *Conn) AwaitRecv() error {
	var wc C.struct_ibv_wc
	n := C.pp_get_recv_comp(c.id, &wc)
	if n < 0 {
		return syscall.Errno(C.get_errno())
	}
	if n == 0 {
		return errors.New("receive completion poll returned without a completion")
	}
	return checkStatus(&wc)
}

func checkStatus(wc *C.struct_ibv_wc) error {
	if wc.status != C.IBV_WC_SUCCESS {
		return &CompletionError{
			Status: uint32(wc.status),
			Desc:   C.GoString(C.ibv_wc_status_str(wc.status)),
		}
	}
	return nil
}

// Close releases the registration and the connection identifiers. Safe
// to call on a nil or partially constructed connection, and safe to
// call more than once; each resource is released at most once. The
// transfer buffer itself is the caller's to release.
func (c *Conn) Close() {
	if c == nil {
		return
	}
	if c.mr != nil {
		C.ibv_dereg_mr(c.mr)
		c.mr = nil
	}
	if c.id != nil {
		C.rdma_destroy_ep(c.id)
		c.id = nil
	}
	if c.listenID != nil {
		C.rdma_destroy_ep(c.listenID)
		c.listenID = nil
	}
	log.Debug().Stringer("role", c.role).Msg("Connection closed")
}
