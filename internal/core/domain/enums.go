package domain

type EncryptionMethod string
type DescriptorKind string
type Scope string
type OfficeMode string

const (
	// ZIP entry encryption methods
	EncZipCrypto EncryptionMethod = "ZipCrypto"
	EncAES128    EncryptionMethod = "AES-128"
	EncAES192    EncryptionMethod = "AES-192"
	EncAES256    EncryptionMethod = "AES-256"
	EncStrong    EncryptionMethod = "Strong Encryption"
	EncUnknown   EncryptionMethod = "Unknown"

	// Descriptor kinds
	KindZipCrypto DescriptorKind = "ZIP_CRYPTO"
	KindZipAES    DescriptorKind = "ZIP_AES"
	KindPDFLegacy DescriptorKind = "PDF_LEGACY"
	KindPDFAES    DescriptorKind = "PDF_AES"
	KindOffice    DescriptorKind = "OFFICE"

	// String harvesting scopes
	ScopeFolder     Scope = "Folder"
	ScopeDataSource Scope = "Data Source"
	ScopeHostname   Scope = "Hostname"
	ScopeAll        Scope = "All"

	// Office encryption modes
	OfficeModeStandard OfficeMode = "STANDARD"
	OfficeModeAgile    OfficeMode = "AGILE"
	OfficeModeBinaryRC4 OfficeMode = "BINARY_RC4"
	OfficeModeUnknown  OfficeMode = "UNKNOWN"
)

// Charsets for exhaustive password enumeration.
var (
	CharsetLower   = "abcdefghijklmnopqrstuvwxyz"
	CharsetUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsetDigits  = "0123456789"
	CharsetSpecial = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	CharsetAll     = CharsetLower + CharsetUpper + CharsetDigits + CharsetSpecial
)

// Artifact attribute names written through the ArtifactStore port.
const (
	AttrPassword      = "FORGE_PASSWORD"
	AttrTriedPassword = "FORGE_TRIED_PASSWORD"

	AttrZipArchiveEncMethod  = "FORGE_ZIP_ARCHIVE_ENC_METHOD"
	AttrZipArchiveComment    = "FORGE_ZIP_ARCHIVE_COMMENT"
	AttrZipArchiveCDRecords  = "FORGE_ZIP_ARCHIVE_CDRECORDS"
	AttrZipArchiveCDOffset   = "FORGE_ZIP_ARCHIVE_CDOFFSET"
	AttrZipArchiveEOCDOffset = "FORGE_ZIP_ARCHIVE_EOCDOFFSET"

	AttrZipFileEncMethod   = "FORGE_ZIP_FILE_ENCRYPTION_METHOD"
	AttrZipFileGenPurpFlag = "FORGE_ZIP_FILE_GEN_PURP_FLAG"
	AttrZipFileCRC32       = "FORGE_ZIP_FILE_CRC32"
	AttrZipFileLastModTime = "FORGE_ZIP_FILE_LAST_MOD_TIME"

	AttrPDFFilter            = "FORGE_PDF_FILTER"
	AttrPDFSubFilter         = "FORGE_PDF_SUBFILTER"
	AttrPDFVersion           = "FORGE_PDF_VERSION"
	AttrPDFLength            = "FORGE_PDF_LENGTH"
	AttrPDFRevision          = "FORGE_PDF_REVISION"
	AttrPDFOwnerKey          = "FORGE_PDF_OWNER_KEY"
	AttrPDFUserKey           = "FORGE_PDF_USER_KEY"
	AttrPDFOwnerEncKey       = "FORGE_PDF_OWNER_ENCRYPTION_KEY"
	AttrPDFUserEncKey        = "FORGE_PDF_USER_ENCRYPTION_KEY"
	AttrPDFPermissions       = "FORGE_PDF_PERMISSIONS"
	AttrPDFPerms             = "FORGE_PDF_PERMS"
	AttrPDFCryptFilterMethod = "FORGE_PDF_CRYPT_FILTER_METHOD"
	AttrPDFMetadataEncrypted = "FORGE_PDF_IS_METADATAENCRYPTED"
	AttrPDFID                = "FORGE_PDF_ID"

	AttrOfficeMode      = "FORGE_OFFICE_MODE"
	AttrOfficeCipherAlg = "FORGE_OFFICE_CYPHER_ALG"
	AttrOfficeHashAlg   = "FORGE_OFFICE_HASH_ALG"

	AttrBitlockerEncMethod   = "FORGE_BITLOCKER_ENCRYPTION_METHOD"
	AttrBitlockerDescription = "FORGE_BITLOCKER_DESCRIPTION"
	AttrBitlockerCreated     = "FORGE_BITLOCKER_CREATION_TIME"
	AttrBitlockerKeys        = "FORGE_BITLOCKER_KEY"

	AttrLuksVersion    = "FORGE_VOLUME_LUKS_VERSION"
	AttrLuksEncMethod  = "FORGE_LUKS_ENCRYPTION_METHOD"
	AttrLuksEncMode    = "FORGE_LUKS_ENCRYPTION_MODE"
	AttrLuksHashMethod = "FORGE_LUKS_HASH_METHOD"
	AttrLuksKeySize    = "FORGE_LUKS_KEY_SIZE"
	AttrLuksKeySlots   = "FORGE_LUKS_ACTIVE_KEYSLOTS"
	AttrLuksGUID       = "FORGE_LUKS_GUID"
)

// CrackerSourceTag marks files whose strings feed the candidate list.
const CrackerSourceTag = "FORGE Cracker Source"
