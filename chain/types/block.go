package types

// Block is a block as served by the gateway. Only the members clients read
// are typed; the rest of the header is ignored.
type Block struct {
	Nonce          string   `json:"nonce"`
	PreviousBlock  string   `json:"previous_block"`
	Timestamp      int64    `json:"timestamp"`
	LastRetarget   int64    `json:"last_retarget"`
	Diff           string   `json:"diff"`
	Height         int64    `json:"height"`
	Hash           string   `json:"hash"`
	IndepHash      string   `json:"indep_hash"`
	Txs            []string `json:"txs"`
	TxRoot         string   `json:"tx_root"`
	WalletList     string   `json:"wallet_list"`
	RewardAddr     string   `json:"reward_addr"`
	Tags           []Tag    `json:"tags"`
	RewardPool     BigInt   `json:"reward_pool"`
	WeaveSize      BigInt   `json:"weave_size"`
	BlockSize      BigInt   `json:"block_size"`
	CumulativeDiff string   `json:"cumulative_diff"`
	HashListMerkle string   `json:"hash_list_merkle"`
}

// NetworkInfo is the /info document of a node.
type NetworkInfo struct {
	Network          string `json:"network"`
	Version          int    `json:"version"`
	Release          int    `json:"release"`
	Height           int64  `json:"height"`
	Current          string `json:"current"`
	Blocks           int64  `json:"blocks"`
	Peers            int    `json:"peers"`
	QueueLength      int    `json:"queue_length"`
	NodeStateLatency int    `json:"node_state_latency"`
}

type PeerList []string
