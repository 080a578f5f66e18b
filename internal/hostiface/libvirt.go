package hostiface

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"libvirt.org/go/libvirtxml"
)

// localSystemURI is the fixed local hypervisor session endpoint (spec
// §6.3: "no credentials, no remote endpoints").
const localSystemURI = string(libvirt.QEMUSystem)

// libvirtGuest adapts a libvirt.Domain to GuestHandle.
type libvirtGuest struct {
	dom libvirt.Domain
}

func (g *libvirtGuest) Name() string { return g.dom.Name }

// LibvirtHost implements HostInterface against a real hypervisor via
// github.com/digitalocean/go-libvirt, a pure-Go (no cgo) RPC client. It is
// the only package in this module that imports go-libvirt; everything
// above it (internal/cpusched, internal/memcoord) only ever sees the
// HostInterface contract, per spec §6.6.
type LibvirtHost struct {
	lv     *libvirt.Libvirt
	domain map[string]libvirt.Domain // keyed by domain name; filled by ListActiveGuests, pruned by ReleaseGuest

	// hostCPUMapLen is the byte length of a vCPU-pin cpumap on this host,
	// derived once from the host capabilities XML (spec §2 domain stack:
	// libvirtxml unmarshals the Capabilities() blob for host pCPU
	// topology). Cached at Connect time since it never changes for the
	// life of a session.
	hostCPUMapLen int
}

// NewLibvirtHost returns an unconnected LibvirtHost; call Connect before
// any other method.
func NewLibvirtHost() *LibvirtHost {
	return &LibvirtHost{domain: make(map[string]libvirt.Domain)}
}

func (h *LibvirtHost) Connect(ctx context.Context, uri string) error {
	if uri == "" {
		uri = localSystemURI
	}
	lv, err := libvirt.ConnectToURI(libvirt.ConnectURI(uri))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConn, err)
	}
	h.lv = lv

	if n, err := h.hostTopologyCPUs(); err == nil && n > 0 {
		h.hostCPUMapLen = (n + 7) / 8
	} else {
		h.hostCPUMapLen = 8 // 64 pCPUs, a conservative fallback
	}
	return nil
}

// hostTopologyCPUs parses the host capabilities XML via libvirtxml to
// count physical CPUs across every NUMA cell (spec §2: "host pCPU
// topology at connect time").
func (h *LibvirtHost) hostTopologyCPUs() (int, error) {
	xmlDesc, err := h.lv.ConnectGetCapabilities()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHostInfo, err)
	}
	var caps libvirtxml.Caps
	if err := caps.Unmarshal(xmlDesc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHostInfo, err)
	}
	if caps.Host.CPU == nil || caps.Host.Topology == nil {
		return 0, fmt.Errorf("%w: no host topology in capabilities", ErrHostInfo)
	}
	total := 0
	for _, cell := range caps.Host.Topology.Cells.Cells {
		if cell.CPUS != nil {
			total += cell.CPUS.Num
		}
	}
	return total, nil
}

func (h *LibvirtHost) ListActiveGuests(ctx context.Context) ([]GuestHandle, error) {
	domains, _, err := h.lv.ConnectListAllDomains(-1, libvirt.ConnectListDomainsActive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrList, err)
	}
	if len(domains) == 0 {
		return nil, ErrNoGuests
	}
	out := make([]GuestHandle, 0, len(domains))
	for _, d := range domains {
		h.domain[d.Name] = d
		out = append(out, &libvirtGuest{dom: d})
	}
	return out, nil
}

func (h *LibvirtHost) HostFreeKiB(ctx context.Context) (uint64, error) {
	bytes, err := h.lv.NodeGetFreeMemory()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHostFree, err)
	}
	return bytes / 1024, nil
}

func (h *LibvirtHost) HostTotalKiB(ctx context.Context) (uint64, error) {
	_, memKiB, _, _, _, _, _, _, err := h.lv.NodeGetInfo()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHostInfo, err)
	}
	return memKiB, nil
}

func (h *LibvirtHost) NumPCPUs(ctx context.Context) (int, error) {
	_, _, cpus, _, nodes, sockets, cores, threads, err := h.lv.NodeGetInfo()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHostInfo, err)
	}
	if cpus > 0 {
		return int(cpus), nil
	}
	return int(nodes) * int(sockets) * int(cores) * int(threads), nil
}

// PCPUIdleNs reads the cumulative idle time for one pCPU, in nanoseconds,
// via the node CPU stats RPC (per-pCPU "idle" field is reported in ns by
// libvirt's NodeGetCPUStats).
func (h *LibvirtHost) PCPUIdleNs(ctx context.Context, pcpu int) (uint64, error) {
	_, nparams, err := h.lv.NodeGetCPUStats(int32(pcpu), 0, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPcpuIdle, err)
	}
	params, _, err := h.lv.NodeGetCPUStats(int32(pcpu), nparams, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPcpuIdle, err)
	}
	for _, p := range params {
		if p.Field == libvirt.NodeCPUStatsIdle {
			return p.Value, nil
		}
	}
	return 0, fmt.Errorf("%w: idle field absent for pcpu %d", ErrPcpuIdle, pcpu)
}

func (h *LibvirtHost) domainOf(g GuestHandle) (libvirt.Domain, error) {
	lg, ok := g.(*libvirtGuest)
	if !ok {
		return libvirt.Domain{}, fmt.Errorf("hostiface: not a libvirt guest handle")
	}
	return lg.dom, nil
}

func (h *LibvirtHost) GuestVCPUInfo(ctx context.Context, g GuestHandle) (VCPUInfo, error) {
	dom, err := h.domainOf(g)
	if err != nil {
		return VCPUInfo{}, fmt.Errorf("%w: %v", ErrGuestInfo, err)
	}
	_, _, _, nrVirtCPU, cpuTimeNs, err := h.lv.DomainGetInfo(dom)
	if err != nil {
		return VCPUInfo{}, fmt.Errorf("%w: %v", ErrGuestInfo, err)
	}
	maplen := h.cpuMapLen()
	cpumaps, _, err := h.lv.DomainGetVcpuPinInfo(dom, int32(nrVirtCPU), int32(maplen), 0)
	if err != nil {
		return VCPUInfo{}, fmt.Errorf("%w: %v", ErrGuestInfo, err)
	}
	pcpu := firstSetBit(cpumaps, int(maplen))
	return VCPUInfo{PCPU: pcpu, RunNs: cpuTimeNs}, nil
}

// cpuMapLen returns the byte length of a cpumap spanning every pCPU on
// this host, cached at Connect time.
func (h *LibvirtHost) cpuMapLen() int {
	if h.hostCPUMapLen > 0 {
		return h.hostCPUMapLen
	}
	return 8
}

func firstSetBit(cpumaps []byte, maplen int) int {
	for i := 0; i < maplen && i < len(cpumaps); i++ {
		b := cpumaps[i]
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				return i*8 + bit
			}
		}
	}
	return -1
}

func (h *LibvirtHost) GuestPinVCPU(ctx context.Context, g GuestHandle, vcpuIdx int, cpumap uint64) error {
	dom, err := h.domainOf(g)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPin, err)
	}
	maplen := h.cpuMapLen()
	buf := make([]byte, maplen)
	for i := 0; i < 64; i++ {
		if cpumap&(1<<uint(i)) != 0 {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	if err := h.lv.DomainPinVcpu(dom, uint32(vcpuIdx), buf); err != nil {
		return fmt.Errorf("%w: %v", ErrPin, err)
	}
	return nil
}

func (h *LibvirtHost) GuestSetMemStatsPeriod(ctx context.Context, g GuestHandle, seconds int) error {
	dom, err := h.domainOf(g)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	if err := h.lv.DomainSetMemoryStatsPeriod(dom, int32(seconds), 0); err != nil {
		return fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	return nil
}

func (h *LibvirtHost) GuestMemStats(ctx context.Context, g GuestHandle) ([]MemStat, error) {
	dom, err := h.domainOf(g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	stats, err := h.lv.DomainMemoryStats(dom, uint32(libvirt.DomainMemoryStatNr), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	out := make([]MemStat, 0, len(stats))
	for _, s := range stats {
		out = append(out, MemStat{Tag: memStatTagName(s.Tag), Value: uint64(s.Val)})
	}
	return out, nil
}

func memStatTagName(tag int32) string {
	switch tag {
	case int32(libvirt.DomainMemoryStatActualBalloon):
		return MemStatActualBalloon
	case int32(libvirt.DomainMemoryStatUnused):
		return MemStatUnused
	default:
		return fmt.Sprintf("tag_%d", tag)
	}
}

func (h *LibvirtHost) GuestMaxMemKiB(ctx context.Context, g GuestHandle) (uint64, error) {
	dom, err := h.domainOf(g)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	_, maxMem, _, _, _, err := h.lv.DomainGetInfo(dom)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	return uint64(maxMem), nil
}

func (h *LibvirtHost) GuestSetMemoryKiB(ctx context.Context, g GuestHandle, kib uint64) error {
	dom, err := h.domainOf(g)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	if err := h.lv.DomainSetMemory(dom, kib); err != nil {
		return fmt.Errorf("%w: %v", ErrGuestMem, err)
	}
	return nil
}

func (h *LibvirtHost) ReleaseGuest(ctx context.Context, g GuestHandle) {
	if lg, ok := g.(*libvirtGuest); ok {
		delete(h.domain, lg.dom.Name)
	}
}

func (h *LibvirtHost) Close(ctx context.Context) {
	if h.lv != nil {
		_ = h.lv.Disconnect()
	}
}
