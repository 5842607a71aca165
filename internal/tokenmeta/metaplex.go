package tokenmeta

import (
	"context"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	tokenmetadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/example/walletcore/internal/rpcpool"
)

// MetaplexProgramID is the Metaplex Token Metadata program.
const MetaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

var metaplexProgramID = solana.MustPublicKeyFromBase58(MetaplexProgramID)

// Resolver fills registry gaps from on-chain Metaplex metadata. It is an
// optional enrichment: any failure leaves the mint as Unknown.
type Resolver struct {
	pool     *rpcpool.Pool
	registry *Registry
	log      *zap.Logger
}

func NewResolver(pool *rpcpool.Pool, registry *Registry, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{pool: pool, registry: registry, log: log}
}

// Resolve looks up a mint on chain and records the result in the registry.
func (r *Resolver) Resolve(ctx context.Context, mint string, decimals int) (Info, error) {
	mintPk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return Info{}, fmt.Errorf("invalid mint %q: %w", mint, err)
	}
	pda, err := metadataPDA(mintPk)
	if err != nil {
		return Info{}, err
	}

	raw, _, err := rpcpool.Do(ctx, r.pool, "meta:"+mint, func(ctx context.Context, ep *rpcpool.Endpoint) ([]byte, error) {
		res, err := ep.Client.GetAccountInfo(ctx, pda)
		if err != nil {
			return nil, fmt.Errorf("get metadata account %s: %w", pda, err)
		}
		if res == nil || res.Value == nil {
			return nil, fmt.Errorf("metadata account %s not found", pda)
		}
		if !res.Value.Owner.Equals(metaplexProgramID) {
			return nil, fmt.Errorf("metadata account %s has wrong owner %s", pda, res.Value.Owner)
		}
		data := res.Value.Data.GetBinary()
		if len(data) == 0 {
			return nil, fmt.Errorf("metadata account %s is empty", pda)
		}
		return data, nil
	})
	if err != nil {
		return Info{}, err
	}

	var meta tokenmetadata.Metadata
	if err := bin.NewBorshDecoder(raw).Decode(&meta); err != nil {
		return Info{}, fmt.Errorf("decode metadata for %s: %w", mint, err)
	}

	// on-chain strings are fixed-width and null padded
	info := Info{
		Symbol:   strings.TrimRight(meta.Data.Symbol, "\x00"),
		Name:     strings.TrimRight(meta.Data.Name, "\x00"),
		Decimals: decimals,
	}
	if info.Symbol == "" {
		return Info{}, fmt.Errorf("metadata for %s has empty symbol", mint)
	}
	r.registry.Add(mint, info)
	r.log.Debug("resolved mint metadata on chain",
		zap.String("mint", mint),
		zap.String("symbol", info.Symbol))
	return info, nil
}

// metadataPDA derives the Metaplex metadata PDA for a mint.
func metadataPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			metaplexProgramID.Bytes(),
			mint.Bytes(),
		},
		metaplexProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive metadata pda: %w", err)
	}
	return pda, nil
}
