package verifier

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/yeka/zip"

	"forge/internal/core/domain"
)

// Verifier answers whether a candidate password opens one encrypted
// object. Verify performs the minimum cryptographic work the format allows;
// Decrypt is the best-effort export hook invoked after a find.
type Verifier interface {
	Verify(password string) (bool, error)
	Decrypt(password, destDir string) error
}

// New selects the verifier matching a descriptor. container holds the raw
// bytes of the archive or document; ZIP verifiers use it for the library
// confirmation pass and for export.
func New(desc domain.Descriptor, container []byte) (Verifier, error) {
	switch d := desc.(type) {
	case domain.ZipCryptoDescriptor:
		return NewZipCrypto(d, container), nil
	case domain.ZipAESDescriptor:
		return NewZipAES(d, container)
	case domain.PDFLegacyDescriptor:
		return NewPDFLegacy(d)
	case domain.PDFAESDescriptor:
		return NewPDFAES(d)
	case domain.OfficeDescriptor:
		return NewOffice(d)
	}
	return nil, errors.Wrapf(domain.ErrUnsupported, "verifier: descriptor kind %s", desc.Kind())
}

// zipLibraryCheck runs a full decryption of the entry through the zip
// library to weed out fast-check collisions. A decryption or checksum
// failure rejects the candidate; any other failure is swallowed and the
// candidate accepted, leaving semantic verification to the caller.
func zipLibraryCheck(archive []byte, entryPath, password string) bool {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return true
	}
	for _, f := range zr.File {
		if f.Name != entryPath {
			continue
		}
		f.SetPassword(password)
		rc, err := f.Open()
		if err != nil {
			return !isWrongPassword(err)
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			return !isWrongPassword(err)
		}
		return true
	}
	return true
}

func isWrongPassword(err error) bool {
	return errors.Is(err, zip.ErrDecryption) || errors.Is(err, zip.ErrChecksum)
}

// zipExtract decrypts one entry into destDir.
func zipExtract(archive []byte, entryPath, password, destDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return errors.Wrap(domain.ErrIO, err.Error())
	}
	for _, f := range zr.File {
		if f.Name != entryPath {
			continue
		}
		f.SetPassword(password)
		rc, err := f.Open()
		if err != nil {
			return errors.Wrap(domain.ErrCrypto, err.Error())
		}
		defer rc.Close()

		dest := filepath.Join(destDir, filepath.Base(entryPath))
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return errors.Wrap(domain.ErrIO, err.Error())
		}
		out, err := os.Create(dest)
		if err != nil {
			return errors.Wrap(domain.ErrIO, err.Error())
		}
		defer out.Close()

		if _, err := io.Copy(out, rc); err != nil {
			return errors.Wrap(domain.ErrCrypto, err.Error())
		}
		return nil
	}
	return errors.Wrapf(domain.ErrIO, "entry %s not found in archive", entryPath)
}
