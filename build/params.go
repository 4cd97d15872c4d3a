package build

import "time"

// /////
// Merkle / chunking

// MaxChunkSize is the largest chunk the network accepts on the chunk endpoint.
const MaxChunkSize = 256 * 1024

// MinChunkSize is the smallest size a non-final chunk may have.
const MinChunkSize = 32 * 1024

// NoteSize is the width of an encoded byte offset inside a merkle proof.
const NoteSize = 32

// HashSize is the width of a SHA-256 digest inside a merkle proof.
const HashSize = 32

// /////
// Upload

// MaxChunksInBody is the number of chunks at or below which the data is posted
// inline with the transaction instead of through the chunk endpoint.
const MaxChunksInBody = 1

// UploadErrorDelay is the base wait after a failed upload request.
const UploadErrorDelay = 40 * time.Second

// UploadErrorJitter is the fraction of the delay that may be shaved off at random.
const UploadErrorJitter = 0.3

// UploadMaxErrors is the length of an error streak after which an upload is abandoned.
const UploadMaxErrors = 100

// FatalChunkUploadErrors are /chunk error bodies that are never retried.
var FatalChunkUploadErrors = []string{
	"invalid_json",
	"chunk_too_big",
	"data_path_too_big",
	"offset_too_big",
	"data_size_too_big",
	"chunk_proof_ratio_not_attractive",
	"invalid_proof",
}

// /////
// Transactions

// DefaultTxFormat is the format of newly created transactions.
const DefaultTxFormat = 2

// MaxInlineDataSize is the largest data size fetched through the plain data
// endpoint; bigger payloads are reassembled from chunks.
const MaxInlineDataSize = 12 * 1024 * 1024

// A single anchor is valid for up to 25 blocks; caching for 40 minutes keeps
// it around 20.
const AnchorCacheTTL = 40 * time.Minute

const PriceCacheTTL = time.Hour

const WalletCacheTTL = 2 * time.Minute

// /////
// Currency

// WinstonPrecision is the number of winston in one AR.
const (
	WinstonPrecision = 1_000_000_000_000
	WinstonDecimals  = 12
)

// /////
// Gateway

const DefaultGatewayURL = "https://arweave.net"

const DefaultRequestTimeout = 20 * time.Second

// MaxContentLength caps the size of a gateway response body.
const MaxContentLength = 512 * 1024 * 1024

var DefaultTrustedHosts = []string{
	"https://arweave.net",
	"https://gateway.amplify.host",
	"https://gateway-n1.amplify.host",
	"https://gateway-n2.amplify.host",
	"https://gateway-n3.amplify.host",
}
