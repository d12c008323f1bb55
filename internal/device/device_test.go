package device

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"github.com/mesler1/dadcam/internal/config"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls   []call
	outputs map[string]string
	fail    map[string]error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	key := name + " " + args[0]
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return []byte(f.outputs[key]), nil
}

func testTools(r *fakeRunner) *Tools {
	return NewTools(config.Device{Udisksctl: "udisksctl", Blkid: "blkid", Udevadm: "udevadm"}, r.run)
}

func TestProbe(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"blkid -s":     "A1B2-C3D4\n",
		"udevadm info": "DEVNAME=/dev/sdb1\nID_SERIAL_SHORT=0001\nID_MODEL_ID=5678\n",
	}}
	info, err := testTools(r).Probe(context.Background(), "/dev/sdb1")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.UUID != "A1B2-C3D4" || info.Serial != "0001" || info.Device != "/dev/sdb1" {
		t.Fatalf("unexpected info %+v", info)
	}
	if got := strings.Join(r.calls[0].args, " "); got != "-s UUID -o value /dev/sdb1" {
		t.Fatalf("unexpected blkid args %q", got)
	}
	if got := strings.Join(r.calls[1].args, " "); got != "info --query=property --name=/dev/sdb1" {
		t.Fatalf("unexpected udevadm args %q", got)
	}
}

func TestProbePartialAndFailure(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string]string{"udevadm info": "ID_SERIAL=Lexar_CF_42\n"},
		fail:    map[string]error{"blkid -s": errors.New("exit status 2")},
	}
	info, err := testTools(r).Probe(context.Background(), "/dev/sdc1")
	if err != nil || info.Serial != "Lexar_CF_42" || info.UUID != "" {
		t.Fatalf("expected serial-only info, got %+v err=%v", info, err)
	}

	r = &fakeRunner{fail: map[string]error{
		"blkid -s":     errors.New("no blkid"),
		"udevadm info": errors.New("no udevadm"),
	}}
	if _, err := testTools(r).Probe(context.Background(), "/dev/sdc1"); err == nil {
		t.Fatal("expected error when nothing could be read")
	}
}

func TestSerialFromProperties(t *testing.T) {
	tests := []struct {
		props map[string]string
		want  string
	}{
		{map[string]string{"ID_SERIAL": "a", "ID_SERIAL_SHORT": "b"}, "a"},
		{map[string]string{"ID_SERIAL": " ", "ID_SERIAL_SHORT": "b"}, "b"},
		{map[string]string{"ID_MODEL_ID": "c"}, "c"},
		{map[string]string{}, ""},
	}
	for _, tt := range tests {
		if got := SerialFromProperties(tt.props); got != tt.want {
			t.Fatalf("SerialFromProperties(%v) = %q, want %q", tt.props, got, tt.want)
		}
	}
}

func TestParseMountPath(t *testing.T) {
	tests := []struct {
		out  string
		want string
		ok   bool
	}{
		{"Mounted /dev/sda1 at /run/media/deck/CARD.\n", "/run/media/deck/CARD", true},
		{"Mounted /dev/sda1 at /media/x\n", "/media/x", true},
		{"Error mounting /dev/sda1\n", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMountPath(tt.out, "/dev/sda1")
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseMountPath(%q) = %q,%v want %q,%v", tt.out, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWithMountedUnmountsAfterRun(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"blkid -s":        "A1B2\n",
		"udisksctl mount": "Mounted /dev/sdb1 at /run/media/deck/CARD.\n",
	}}
	var gotPath string
	runErr := errors.New("pipeline failed")
	err := testTools(r).WithMounted(context.Background(), "/dev/sdb1",
		func(info Info) (bool, error) { return info.UUID == "A1B2", nil },
		nil,
		func(_ context.Context, _ Info, mountPath string) error {
			gotPath = mountPath
			return runErr
		})
	if !errors.Is(err, runErr) {
		t.Fatalf("expected run error, got %v", err)
	}
	if gotPath != "/run/media/deck/CARD" {
		t.Fatalf("unexpected mount path %q", gotPath)
	}
	last := r.calls[len(r.calls)-1]
	if last.name != "udisksctl" || last.args[0] != "unmount" {
		t.Fatalf("expected unmount last, got %+v", last)
	}
}

func TestWithMountedRejections(t *testing.T) {
	t.Run("not whitelisted", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{"blkid -s": "OTHER\n"}}
		err := testTools(r).WithMounted(context.Background(), "/dev/sdb1",
			func(Info) (bool, error) { return false, nil }, nil,
			func(context.Context, Info, string) error {
				t.Fatal("fn must not run")
				return nil
			})
		if !errors.Is(err, ErrNotWhitelisted) {
			t.Fatalf("expected ErrNotWhitelisted, got %v", err)
		}
		for _, c := range r.calls {
			if c.name == "udisksctl" {
				t.Fatal("device must not be mounted")
			}
		}
	})
	t.Run("mount failure", func(t *testing.T) {
		r := &fakeRunner{
			outputs: map[string]string{"blkid -s": "A1B2\n"},
			fail:    map[string]error{"udisksctl mount": errors.New("not authorized")},
		}
		err := testTools(r).WithMounted(context.Background(), "/dev/sdb1", nil, nil,
			func(context.Context, Info, string) error { return nil })
		if !errors.Is(err, ErrMountFailed) {
			t.Fatalf("expected ErrMountFailed, got %v", err)
		}
	})
}

func TestDeviceName(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"DEVNAME": "/dev/sdb1"}, "/dev/sdb1"},
		{map[string]string{"DEVNAME": "sdb1"}, "/dev/sdb1"},
		{map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/block/sdb/sdb1"}, "/dev/sdb1"},
		{map[string]string{}, ""},
	}
	for _, tt := range tests {
		if got := deviceName(netlink.UEvent{Env: tt.env}); got != tt.want {
			t.Fatalf("deviceName(%v) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestPartitionMatcher(t *testing.T) {
	m := partitionMatcher()
	add := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "partition"}}
	if !m.Evaluate(add) {
		t.Fatal("expected partition add to match")
	}
	disk := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "disk"}}
	if m.Evaluate(disk) {
		t.Fatal("whole-disk events must not match")
	}
	remove := netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "partition"}}
	if m.Evaluate(remove) {
		t.Fatal("remove events must not match")
	}
}

func TestMonitorStopWithoutStart(t *testing.T) {
	m := NewMonitor(nil, nil)
	m.Stop()
	if m.Running() {
		t.Fatal("unstarted monitor must not report running")
	}
}
