package zipball

import (
	"crypto/rand"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zip"
)

// encryptionHeaderLen is the size of the header that precedes the data of
// every traditionally encrypted entry.
const encryptionHeaderLen = 12

// flagEncrypted marks an entry as encrypted in the general purpose flags.
const flagEncrypted = 0x1

// flagDataDescriptor marks an entry whose sizes and CRC follow its data.
const flagDataDescriptor = 0x8

var (
	// ErrPasswordRequired is returned when an encrypted entry is read without
	// a password.
	ErrPasswordRequired = errors.New("zip entry is encrypted and no password was given")

	// ErrBadPassword is returned when the encryption header does not match the
	// password.
	ErrBadPassword = errors.New("incorrect password for encrypted zip entry")
)

// zipCipher holds the three keys of the traditional PKWARE stream cipher.
type zipCipher struct {
	k0, k1, k2 uint32
}

func newZipCipher(password []byte) *zipCipher {
	c := &zipCipher{k0: 0x12345678, k1: 0x23456789, k2: 0x34567890}
	for _, b := range password {
		c.update(b)
	}
	return c
}

func crc32Update(crc uint32, b byte) uint32 {
	return crc32.IEEETable[byte(crc)^b] ^ (crc >> 8)
}

func (c *zipCipher) update(b byte) {
	c.k0 = crc32Update(c.k0, b)
	c.k1 = (c.k1+(c.k0&0xff))*134775813 + 1
	c.k2 = crc32Update(c.k2, byte(c.k1>>24))
}

func (c *zipCipher) keystream() byte {
	t := uint32(uint16(c.k2 | 2))
	return byte((t * (t ^ 1)) >> 8)
}

func (c *zipCipher) encrypt(b byte) byte {
	out := b ^ c.keystream()
	c.update(b)
	return out
}

func (c *zipCipher) decrypt(b byte) byte {
	plain := b ^ c.keystream()
	c.update(plain)
	return plain
}

// checkByte is the value the last header byte must decrypt to. Entries with a
// data descriptor use the high byte of the DOS time since the CRC is not known
// when the header is written.
func checkByte(fh *zip.FileHeader) byte {
	if fh.Flags&flagDataDescriptor != 0 {
		return byte(fh.ModifiedTime >> 8)
	}
	return byte(fh.CRC32 >> 24)
}

// encryptWriter encrypts everything written through it. The encryption header
// is emitted lazily because the zip writer builds the compressor before it
// writes the local file header.
type encryptWriter struct {
	w       io.Writer
	cipher  *zipCipher
	check   byte
	started bool
	buf     []byte
}

func newEncryptWriter(w io.Writer, password []byte, check byte) *encryptWriter {
	return &encryptWriter{w: w, cipher: newZipCipher(password), check: check}
}

func (e *encryptWriter) writeHeader() error {
	if e.started {
		return nil
	}
	e.started = true

	header := make([]byte, encryptionHeaderLen)
	if _, err := rand.Read(header[:encryptionHeaderLen-1]); err != nil {
		return fmt.Errorf("failed to generate encryption header: %w", err)
	}
	header[encryptionHeaderLen-1] = e.check
	for i, b := range header {
		header[i] = e.cipher.encrypt(b)
	}
	_, err := e.w.Write(header)
	return err
}

func (e *encryptWriter) Write(p []byte) (int, error) {
	if err := e.writeHeader(); err != nil {
		return 0, err
	}
	if cap(e.buf) < len(p) {
		e.buf = make([]byte, len(p))
	}
	out := e.buf[:len(p)]
	for i, b := range p {
		out[i] = e.cipher.encrypt(b)
	}
	if _, err := e.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close emits the header if no data was written. It does not close w.
func (e *encryptWriter) Close() error {
	return e.writeHeader()
}

// decryptReader verifies the encryption header on first read and decrypts the
// rest of the stream.
type decryptReader struct {
	r         io.Reader
	cipher    *zipCipher
	check     byte
	started   bool
	headerErr error
}

func newDecryptReader(r io.Reader, password []byte, check byte) *decryptReader {
	return &decryptReader{r: r, cipher: newZipCipher(password), check: check}
}

// readHeader consumes and verifies the encryption header. It runs once; later
// calls return the first result.
func (d *decryptReader) readHeader() error {
	if d.started {
		return d.headerErr
	}
	d.started = true

	header := make([]byte, encryptionHeaderLen)
	if _, err := io.ReadFull(d.r, header); err != nil {
		d.headerErr = fmt.Errorf("failed to read encryption header: %w", err)
		return d.headerErr
	}
	for i, b := range header {
		header[i] = d.cipher.decrypt(b)
	}
	if header[encryptionHeaderLen-1] != d.check {
		d.headerErr = ErrBadPassword
	}
	return d.headerErr
}

func (d *decryptReader) Read(p []byte) (int, error) {
	if err := d.readHeader(); err != nil {
		return 0, err
	}
	n, err := d.r.Read(p)
	for i := 0; i < n; i++ {
		p[i] = d.cipher.decrypt(p[i])
	}
	return n, err
}
