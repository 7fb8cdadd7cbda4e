package rdma

// #include <errno.h>
// #include <infiniband/verbs.h>
//
// static int list_errno(void) {
//     return errno;
// }
//
// static struct ibv_device *device_at(struct ibv_device **list, int i) {
//     return list[i];
// }
//
// // Port attributes are queried through a helper because ibv_query_port
// // is a macro-compat wrapper in some libibverbs versions.
// static int query_port_state(struct ibv_context *ctx, uint8_t port, enum ibv_port_state *state) {
//     struct ibv_port_attr attr;
//     if (ibv_query_port(ctx, port, &attr)) {
//         return -1;
//     }
//     *state = attr.state;
//     return 0;
// }
//
// static int query_port_count(struct ibv_context *ctx, uint8_t *cnt) {
//     struct ibv_device_attr attr;
//     if (ibv_query_device(ctx, &attr)) {
//         return -1;
//     }
//     *cnt = attr.phys_port_cnt;
//     return 0;
// }
import "C"

import (
	"syscall"
)

// Device describes one RDMA-capable device found on the host.
type Device struct {
	Name     string
	GUID     uint64
	NodeType string
}

// Port describes the state of one physical port on a device.
type Port struct {
	Num   uint8
	State string
}

// ListDevices enumerates the host's RDMA devices.
func ListDevices() ([]Device, error) {
	var num C.int
	list := C.ibv_get_device_list(&num)
	if list == nil {
		return nil, syscall.Errno(C.list_errno())
	}
	defer C.ibv_free_device_list(list)

	devices := make([]Device, 0, int(num))
	for i := 0; i < int(num); i++ {
		dev := C.device_at(list, C.int(i))
		devices = append(devices, Device{
			Name:     C.GoString(C.ibv_get_device_name(dev)),
			GUID:     uint64(C.ibv_get_device_guid(dev)),
			NodeType: C.GoString(C.ibv_node_type_str(dev.node_type)),
		})
	}
	return devices, nil
}

// QueryPorts opens the named device and reports the state of each
// physical port.
func QueryPorts(name string) ([]Port, error) {
	var num C.int
	list := C.ibv_get_device_list(&num)
	if list == nil {
		return nil, syscall.Errno(C.list_errno())
	}
	defer C.ibv_free_device_list(list)

	for i := 0; i < int(num); i++ {
		dev := C.device_at(list, C.int(i))
		if C.GoString(C.ibv_get_device_name(dev)) != name {
			continue
		}

		ctx := C.ibv_open_device(dev)
		if ctx == nil {
			return nil, syscall.Errno(C.list_errno())
		}
		defer C.ibv_close_device(ctx)

		var cnt C.uint8_t
		if C.query_port_count(ctx, &cnt) != 0 {
			return nil, syscall.Errno(C.list_errno())
		}

		// Port numbering starts at 1.
		ports := make([]Port, 0, int(cnt))
		for p := 1; p <= int(cnt); p++ {
			var state C.enum_ibv_port_state
			if C.query_port_state(ctx, C.uint8_t(p), &state) != 0 {
				return nil, syscall.Errno(C.list_errno())
			}
			ports = append(ports, Port{
				Num:   uint8(p),
				State: C.GoString(C.ibv_port_state_str(state)),
			})
		}
		return ports, nil
	}
	return nil, syscall.ENODEV
}
