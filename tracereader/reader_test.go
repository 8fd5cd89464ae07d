package tracereader

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reader", func() {
	It("should decode little-endian records", func() {
		data := []byte{
			0x78, 0x56, 0x34, 0x12, 1, 4, 0, 2, 0x10, 0, 0, 0,
		}

		r := NewReader(bytes.NewReader(data))
		rec, err := r.Next()

		Expect(err).NotTo(HaveOccurred())
		Expect(rec).To(Equal(Record{
			Addr: 0x12345678, ReqType: 1, Size: 4, Proc: 2, Time: 0x10,
		}))

		_, err = r.Next()
		Expect(err).To(Equal(io.EOF))
		Expect(r.Count()).To(Equal(uint64(1)))
	})

	It("should round trip encoded records", func() {
		buf := new(bytes.Buffer)
		addrs := []uint32{0, 0x40000000, 0xFFFFFFFF}
		for i, a := range addrs {
			Expect(Encode(buf, Record{Addr: a, Time: uint32(i)})).To(Succeed())
		}

		r := NewReader(buf)
		for _, a := range addrs {
			addr, err := r.NextAddress()
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(a))
		}

		_, err := r.NextAddress()
		Expect(err).To(Equal(io.EOF))
	})

	It("should report a truncated record", func() {
		r := NewReader(bytes.NewReader(make([]byte, RecordSize+5)))

		_, err := r.Next()
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Next()
		Expect(errors.Is(err, ErrTruncatedRecord)).To(BeTrue())
	})

	It("should open trace files", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace.bin")
		buf := new(bytes.Buffer)
		Expect(Encode(buf, Record{Addr: 0xABC})).To(Succeed())
		Expect(os.WriteFile(path, buf.Bytes(), 0o644)).To(Succeed())

		f, err := Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		addr, err := f.NextAddress()
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(Equal(uint32(0xABC)))
	})

	It("should fail on a missing file", func() {
		_, err := Open(filepath.Join(GinkgoT().TempDir(), "missing"))

		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})
})
