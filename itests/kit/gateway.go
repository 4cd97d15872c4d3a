package kit

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/merkle"
	"github.com/arpi-project/arpi/lib/sigs"
	"github.com/arpi-project/arpi/lib/sigs/rsapss"
)

var log = logging.Logger("itest-gateway")

var errOverspend = xerrors.New("overspend")

// Gateway is an in-process gateway speaking the HTTP API the client uses. It
// verifies posted transactions, checks every chunk proof, assembles data into
// a single weave and mines on demand.
type Gateway struct {
	t   *testing.T
	srv *httptest.Server

	lk        sync.Mutex
	txs       map[string]*gatewayTx
	byRoot    map[string]*gatewayTx
	balances  map[string]string
	blocks    []*types.Block
	weaveSize int64
	mempool   []string

	maxInline      int64
	chunkFailures  int
	chunksAccepted int
}

type gatewayTx struct {
	header *types.Transaction
	size   int64
	data   []byte
	have   int64
	got    map[int]bool
	chunks *merkle.TxChunks

	// absolute weave offset of the first byte, -1 until the data is complete
	start int64
	// index into blocks, -1 while pending
	block int
}

func (g *gatewayTx) complete() bool {
	return g.have >= g.size
}

type GatewayOpt func(*Gateway)

// MaxInlineData makes the gateway refuse to serve data larger than n bytes
// whole, so clients have to fall back to chunks.
func MaxInlineData(n int64) GatewayOpt {
	return func(g *Gateway) { g.maxInline = n }
}

func NewGateway(t *testing.T, opts ...GatewayOpt) *Gateway {
	g := &Gateway{
		t:         t,
		txs:       map[string]*gatewayTx{},
		byRoot:    map[string]*gatewayTx{},
		balances:  map[string]string{},
		maxInline: 12 * 1024 * 1024,
	}
	for _, o := range opts {
		o(g)
	}
	g.blocks = append(g.blocks, g.newBlock(nil))

	r := mux.NewRouter()
	r.HandleFunc("/info", g.info).Methods(http.MethodGet)
	r.HandleFunc("/peers", g.peers).Methods(http.MethodGet)
	r.HandleFunc("/tx_anchor", g.anchor).Methods(http.MethodGet)
	r.HandleFunc("/price/{bytes:[0-9]+}", g.price).Methods(http.MethodGet)
	r.HandleFunc("/price/{bytes:[0-9]+}/{target}", g.price).Methods(http.MethodGet)
	r.HandleFunc("/wallet/{addr}/balance", g.balance).Methods(http.MethodGet)
	r.HandleFunc("/wallet/{addr}/last_tx", g.lastTx).Methods(http.MethodGet)
	r.HandleFunc("/block/hash/{hash}", g.block).Methods(http.MethodGet)
	r.HandleFunc("/tx", g.postTx).Methods(http.MethodPost)
	r.HandleFunc("/chunk", g.postChunk).Methods(http.MethodPost)
	r.HandleFunc("/tx/{id}", g.getTx).Methods(http.MethodGet)
	r.HandleFunc("/tx/{id}/status", g.status).Methods(http.MethodGet)
	r.HandleFunc("/tx/{id}/offset", g.offset).Methods(http.MethodGet)
	r.HandleFunc("/{offset:[0-9]+}/chunk", g.getChunk).Methods(http.MethodGet)
	r.HandleFunc("/{id}", g.data).Methods(http.MethodGet)

	g.srv = httptest.NewServer(r)
	t.Cleanup(g.srv.Close)
	return g
}

func (g *Gateway) URL() string {
	return g.srv.URL
}

// Fund sets the balance of addr in winston.
func (g *Gateway) Fund(addr, winston string) {
	g.lk.Lock()
	defer g.lk.Unlock()
	g.balances[addr] = winston
}

// FailChunks makes the next n chunk posts fail with a 503.
func (g *Gateway) FailChunks(n int) {
	g.lk.Lock()
	defer g.lk.Unlock()
	g.chunkFailures = n
}

// ChunksAccepted counts chunk posts that passed validation.
func (g *Gateway) ChunksAccepted() int {
	g.lk.Lock()
	defer g.lk.Unlock()
	return g.chunksAccepted
}

// Mine includes every pending transaction in a new block.
func (g *Gateway) Mine() *types.Block {
	g.lk.Lock()
	defer g.lk.Unlock()

	blk := g.newBlock(g.mempool)
	for _, id := range g.mempool {
		g.txs[id].block = len(g.blocks)
	}
	g.mempool = nil
	g.blocks = append(g.blocks, blk)

	log.Debugw("mined block", "height", blk.Height, "txs", len(blk.Txs))
	return blk
}

func (g *Gateway) newBlock(txs []string) *types.Block {
	hash := make([]byte, 48)
	_, _ = rand.Read(hash)

	blk := &types.Block{
		Height:    int64(len(g.blocks)),
		IndepHash: b64url.Encode(hash),
		Txs:       append([]string{}, txs...),
		WeaveSize: types.NewInt(uint64(g.weaveSize)),
	}
	if n := len(g.blocks); n > 0 {
		blk.PreviousBlock = g.blocks[n-1].IndepHash
	}
	return blk
}

func (g *Gateway) current() *types.Block {
	return g.blocks[len(g.blocks)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeText(w http.ResponseWriter, s string) {
	_, _ = w.Write([]byte(s))
}

func (g *Gateway) info(w http.ResponseWriter, r *http.Request) {
	g.lk.Lock()
	defer g.lk.Unlock()

	writeJSON(w, http.StatusOK, types.NetworkInfo{
		Network: "arpi.itest",
		Version: 5,
		Height:  g.current().Height,
		Current: g.current().IndepHash,
		Blocks:  int64(len(g.blocks)),
		Peers:   1,
	})
}

func (g *Gateway) peers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.PeerList{"127.0.0.1:1984"})
}

func (g *Gateway) anchor(w http.ResponseWriter, r *http.Request) {
	g.lk.Lock()
	defer g.lk.Unlock()
	writeText(w, g.current().IndepHash)
}

func (g *Gateway) price(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	size, err := strconv.ParseInt(vars["bytes"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_size")
		return
	}
	writeText(w, strconv.FormatInt(Price(size, vars["target"] != ""), 10))
}

// Price is what the gateway charges for size bytes.
func Price(size int64, transfer bool) int64 {
	p := 1000 + 10*size
	if transfer {
		p += 100000
	}
	return p
}

func (g *Gateway) balance(w http.ResponseWriter, r *http.Request) {
	g.lk.Lock()
	defer g.lk.Unlock()

	b, ok := g.balances[mux.Vars(r)["addr"]]
	if !ok {
		b = "0"
	}
	writeText(w, b)
}

func (g *Gateway) lastTx(w http.ResponseWriter, r *http.Request) {
	writeText(w, "")
}

func (g *Gateway) block(w http.ResponseWriter, r *http.Request) {
	g.lk.Lock()
	defer g.lk.Unlock()

	hash := mux.Vars(r)["hash"]
	for _, b := range g.blocks {
		if b.IndepHash == hash {
			writeJSON(w, http.StatusOK, b)
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found")
}

func (g *Gateway) postTx(w http.ResponseWriter, r *http.Request) {
	var tx types.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	size, err := strconv.ParseInt(tx.DataSize, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_data_size")
		return
	}
	if len(tx.Data) > 0 && int64(len(tx.Data)) != size {
		writeError(w, http.StatusBadRequest, "invalid_data_size")
		return
	}

	if ok, err := verify(r.Context(), &tx); err != nil || !ok {
		log.Warnw("rejecting transaction", "id", tx.ID, "err", err)
		writeError(w, http.StatusBadRequest, "invalid_signature")
		return
	}

	from, err := rsapss.Address(tx.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_owner")
		return
	}

	g.lk.Lock()
	defer g.lk.Unlock()

	if _, ok := g.txs[tx.ID]; ok {
		writeText(w, "OK")
		return
	}

	if tx.Target != "" && tx.Quantity != "0" {
		if err := g.transfer(from, tx.Target, tx.Quantity); err != nil {
			writeError(w, http.StatusBadRequest, "overspend")
			return
		}
	}

	gt := &gatewayTx{
		header: tx.Header(),
		size:   size,
		data:   make([]byte, size),
		got:    map[int]bool{},
		start:  -1,
		block:  -1,
	}
	if len(tx.Data) > 0 {
		copy(gt.data, tx.Data)
		gt.have = size
	}
	g.txs[tx.ID] = gt
	if tx.DataRoot != "" {
		g.byRoot[tx.DataRoot] = gt
	}
	g.mempool = append(g.mempool, tx.ID)
	g.settle(gt)

	log.Debugw("accepted transaction", "id", tx.ID, "size", size, "inline", len(tx.Data) > 0)
	writeText(w, "OK")
}

func verify(ctx context.Context, tx *types.Transaction) (bool, error) {
	sig, err := b64url.Decode(tx.Signature)
	if err != nil {
		return false, err
	}
	msg, err := tx.SignatureData(nil, nil)
	if err != nil {
		return false, err
	}
	return rsapss.Provider{}.Verify(ctx, tx.Owner, msg, sig)
}

func (g *Gateway) transfer(from, to, quantity string) error {
	have, ok := g.balances[from]
	if !ok {
		have = "0"
	}
	left, err := types.SubWinston(have, quantity)
	if err != nil {
		return err
	}
	if c, err := types.CompareWinston(left, "0"); err != nil || c < 0 {
		return errOverspend
	}

	got, ok := g.balances[to]
	if !ok {
		got = "0"
	}
	if got, err = types.AddWinston(got, quantity); err != nil {
		return err
	}

	g.balances[from] = left
	g.balances[to] = got
	return nil
}

// settle places complete data in the weave.
func (g *Gateway) settle(gt *gatewayTx) {
	if !gt.complete() || gt.start >= 0 || gt.size == 0 {
		return
	}

	chunks, err := merkle.GenerateTransactionChunks(gt.data)
	if err != nil {
		g.t.Errorf("chunking assembled data: %s", err)
		return
	}
	gt.chunks = chunks
	gt.start = g.weaveSize
	g.weaveSize += gt.size
}

func (g *Gateway) postChunk(w http.ResponseWriter, r *http.Request) {
	var p types.ChunkPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	g.lk.Lock()
	defer g.lk.Unlock()

	if g.chunkFailures > 0 {
		g.chunkFailures--
		writeError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}

	gt, ok := g.byRoot[p.DataRoot]
	if !ok {
		writeError(w, http.StatusBadRequest, "data_root_not_found")
		return
	}

	root, err1 := b64url.Decode(p.DataRoot)
	path, err2 := b64url.Decode(p.DataPath)
	chunk, err3 := b64url.Decode(p.Chunk)
	offset, err4 := strconv.Atoi(p.Offset)
	size, err5 := strconv.ParseInt(p.DataSize, 10, 64)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}
	if size != gt.size {
		writeError(w, http.StatusBadRequest, "data_size_too_big")
		return
	}

	res, err := merkle.ValidatePath(root, offset, 0, int(size), path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_proof")
		return
	}
	sum, _ := rsapss.Provider{}.Hash(chunk, sigs.SHA256)
	if len(chunk) != res.ChunkSize || !bytes.Equal(sum, res.DataHash) {
		writeError(w, http.StatusBadRequest, "invalid_proof")
		return
	}

	if !gt.got[res.LeftBound] {
		copy(gt.data[res.LeftBound:res.RightBound], chunk)
		gt.got[res.LeftBound] = true
		gt.have += int64(len(chunk))
	}
	g.chunksAccepted++
	g.settle(gt)

	writeText(w, "OK")
}

func (g *Gateway) lookup(w http.ResponseWriter, r *http.Request) *gatewayTx {
	gt, ok := g.txs[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found")
		return nil
	}
	return gt
}

func (g *Gateway) getTx(w http.ResponseWriter, r *http.Request) {
	g.lk.Lock()
	defer g.lk.Unlock()

	if gt := g.lookup(w, r); gt != nil {
		writeJSON(w, http.StatusOK, gt.header)
	}
}

func (g *Gateway) status(w http.ResponseWriter, r *http.Request) {
	g.lk.Lock()
	defer g.lk.Unlock()

	gt := g.lookup(w, r)
	if gt == nil {
		return
	}
	if gt.block < 0 {
		w.WriteHeader(http.StatusAccepted)
		writeText(w, "Pending")
		return
	}

	blk := g.blocks[gt.block]
	writeJSON(w, http.StatusOK, types.TxConfirmation{
		BlockIndepHash:        blk.IndepHash,
		BlockHeight:           blk.Height,
		NumberOfConfirmations: g.current().Height - blk.Height + 1,
	})
}

func (g *Gateway) offset(w http.ResponseWriter, r *http.Request) {
	g.lk.Lock()
	defer g.lk.Unlock()

	gt := g.lookup(w, r)
	if gt == nil {
		return
	}
	if gt.start < 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"size":   strconv.FormatInt(gt.size, 10),
		"offset": strconv.FormatInt(gt.start+gt.size-1, 10),
	})
}

func (g *Gateway) getChunk(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.ParseInt(mux.Vars(r)["offset"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_offset")
		return
	}

	g.lk.Lock()
	defer g.lk.Unlock()

	for _, gt := range g.txs {
		if gt.start < 0 || offset < gt.start || offset >= gt.start+gt.size {
			continue
		}
		rel := int(offset - gt.start)
		for i, c := range gt.chunks.Chunks {
			if rel < c.MinByteRange || rel >= c.MaxByteRange {
				continue
			}
			writeJSON(w, http.StatusOK, map[string]string{
				"chunk":     b64url.Encode(gt.data[c.MinByteRange:c.MaxByteRange]),
				"data_path": b64url.Encode(gt.chunks.Proofs[i].Proof),
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "chunk_not_found")
}

func (g *Gateway) data(w http.ResponseWriter, r *http.Request) {
	g.lk.Lock()
	defer g.lk.Unlock()

	gt := g.lookup(w, r)
	if gt == nil {
		return
	}
	if !gt.complete() {
		w.WriteHeader(http.StatusAccepted)
		writeText(w, "Pending")
		return
	}
	if gt.size > g.maxInline {
		writeError(w, http.StatusBadRequest, "tx_data_too_big")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(gt.data)
}
