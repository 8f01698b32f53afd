// Copyright 2025 Certen Protocol
//
// Live escrow backend: signs and sends transactions against the configured
// chain node, waiting for inclusion. Adapted from pkg/ethereum/client.go's
// SendContractTransactionWithRetry, extended to carry a msg.value for the
// payable depositPool call (the teacher's helper always sent value zero).

package escrow

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	geth "github.com/ethereum/go-ethereum"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/agentcourt/pkg/ethereum"
	"github.com/certen/agentcourt/pkg/protocol"
)

// LiveBackend is the go-ethereum-backed Backend implementation.
type LiveBackend struct {
	eth             *ethereum.Client
	contractAddress common.Address
	parsedABI       gethabi.ABI
	judgePrivateKey string
	gasLimit        uint64
	maxRetries      int

	// signMu guards the judge signing section so overlapping handlers
	// cannot race on the judge account's nonce.
	signMu sync.Mutex

	log *log.Logger
}

// NewLiveBackend parses the contract ABI and wraps an ethereum.Client.
func NewLiveBackend(eth *ethereum.Client, contractAddress, judgePrivateKey string) (*LiveBackend, error) {
	parsed, err := gethabi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("escrow: parse abi: %w", err)
	}
	return &LiveBackend{
		eth:             eth,
		contractAddress: common.HexToAddress(contractAddress),
		parsedABI:       parsed,
		judgePrivateKey: judgePrivateKey,
		gasLimit:        500000,
		maxRetries:      3,
		log:             log.New(log.Writer(), "[EscrowLive] ", log.LstdFlags),
	}, nil
}

func (b *LiveBackend) Capabilities() Capabilities {
	return Capabilities{
		DepositPool:        true,
		PostBond:           true,
		CommitEvidenceHash: true,
		FileDispute:        true,
		SubmitRuling:       true,
	}
}

func (b *LiveBackend) ContractSanity(ctx context.Context) (*SanityReport, error) {
	report := &SanityReport{DryRun: false}
	if err := b.eth.Health(ctx); err != nil {
		return report, nil
	}
	report.RPCReachable = true

	code, err := b.eth.GetClient().CodeAt(ctx, b.contractAddress, nil)
	if err == nil && len(code) > 0 {
		report.CodeAtAddress = true
	}
	return report, nil
}

func amountToBigInt(amount string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("escrow: invalid decimal amount %q", amount)
	}
	return v, nil
}

// sendWithValue signs and sends a contract transaction carrying msg.value
// and waits for its receipt. The transaction is sent once; a send failure
// is returned to the caller without a retry.
func (b *LiveBackend) sendWithValue(ctx context.Context, signerKey, method string, value *big.Int, params ...interface{}) (*TxResult, error) {
	callData, err := b.parsedABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("escrow: pack %s: %w", method, err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(signerKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("escrow: parse signer key: %w", err)
	}
	fromAddress := crypto.PubkeyToAddress(privateKey.PublicKey)

	nonce, err := b.eth.GetNonce(ctx, fromAddress)
	if err != nil {
		return nil, err
	}
	gasPrice, err := b.eth.GetGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = big.NewInt(0)
	}

	tx := types.NewTransaction(nonce, b.contractAddress, value, b.gasLimit, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(b.eth.GetChainID()), privateKey)
	if err != nil {
		return nil, fmt.Errorf("escrow: sign tx: %w", err)
	}
	if err := b.eth.GetClient().SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("escrow: send tx: %w", err)
	}
	receipt, err := b.eth.WaitForTransaction(ctx, signedTx)
	if err != nil {
		return nil, fmt.Errorf("escrow: wait for tx: %w", err)
	}

	status := "failed"
	if receipt.Status == types.ReceiptStatusSuccessful {
		status = "success"
	}
	return &TxResult{
		TxHash:      signedTx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Int64(),
		Status:      status,
	}, nil
}

func (b *LiveBackend) DepositPool(ctx context.Context, signerKey, agreementID, amount string) (*TxResult, error) {
	value, err := amountToBigInt(amount)
	if err != nil {
		return nil, err
	}
	return b.sendWithValue(ctx, signerKey, "depositPool", value, agreementID)
}

func (b *LiveBackend) PostBond(ctx context.Context, signerKey, agreementID, amount string) (*TxResult, error) {
	value, err := amountToBigInt(amount)
	if err != nil {
		return nil, err
	}
	return b.sendWithValue(ctx, signerKey, "postBond", nil, agreementID, value)
}

func (b *LiveBackend) CommitEvidenceHash(ctx context.Context, signerKey, agreementID, rootHash string) (*TxResult, error) {
	var root [32]byte
	copy(root[:], common.FromHex(rootHash))
	return b.sendWithValue(ctx, signerKey, "commitEvidenceHash", nil, agreementID, root)
}

func (b *LiveBackend) FileDispute(ctx context.Context, signerKey string, params FileDisputeParams) (*TxResult, error) {
	defendant := common.HexToAddress(params.Defendant)
	if defendant == (common.Address{}) {
		return nil, ErrInvalidDefendant
	}
	stake, err := amountToBigInt(params.Stake)
	if err != nil {
		return nil, err
	}
	var evidence [32]byte
	copy(evidence[:], common.FromHex(params.PlaintiffEvidence))

	return b.sendWithValue(ctx, signerKey, "fileDispute", nil, params.AgreementID, defendant, stake, evidence)
}

// SubmitRuling is judge-signed; the signing section is mutex-guarded to
// serialize nonce allocation across overlapping dispute handlers.
func (b *LiveBackend) SubmitRuling(ctx context.Context, disputeID string, verdict protocol.VerdictPackage) (*TxResult, error) {
	b.signMu.Lock()
	defer b.signMu.Unlock()

	winner := resolveWinner(verdict)
	feeBps := big.NewInt(int64(verdict.JudgeFeePercent * 100))

	return b.sendWithValue(ctx, b.judgePrivateKey, "submitRuling", nil, disputeID, common.HexToAddress(winner), feeBps)
}

// resolveWinner derives the ruling's winner address: the recipient of the
// largest transfer (the first one on a tie), or verdict.Defendant when the
// verdict has no transfers. Reason codes are not consulted.
func resolveWinner(verdict protocol.VerdictPackage) string {
	if len(verdict.Transfers) == 0 {
		return verdict.Defendant
	}
	best := verdict.Transfers[0]
	bestAmount, _ := new(big.Int).SetString(best.Amount, 10)
	if bestAmount == nil {
		bestAmount = big.NewInt(0)
	}
	for _, t := range verdict.Transfers[1:] {
		amt, ok := new(big.Int).SetString(t.Amount, 10)
		if ok && amt.Cmp(bestAmount) > 0 {
			best = t
			bestAmount = amt
		}
	}
	return best.To
}

func (b *LiveBackend) GetDispute(ctx context.Context, disputeID string) (*Dispute, error) {
	outputs, err := b.eth.CallContract(ctx, b.contractAddress, contractABI, "getDispute", disputeID)
	if err != nil {
		return nil, fmt.Errorf("escrow: getDispute: %w", err)
	}
	if len(outputs) < 10 {
		return nil, fmt.Errorf("escrow: unexpected getDispute output shape")
	}

	tier := 0
	if tierVal, ok := outputs[5].(uint8); ok {
		tier = int(tierVal)
	}

	return &Dispute{
		DisputeID:         disputeID,
		TransactionID:     fmt.Sprint(outputs[0]),
		Plaintiff:         fmt.Sprint(outputs[1]),
		Defendant:         fmt.Sprint(outputs[2]),
		Stake:             fmt.Sprint(outputs[3]),
		JudgeFee:          fmt.Sprint(outputs[4]),
		Tier:              tier,
		PlaintiffEvidence: fmt.Sprintf("0x%x", outputs[6]),
		DefendantEvidence: fmt.Sprintf("0x%x", outputs[7]),
		Resolved:          outputs[8] == true,
		Winner:            fmt.Sprint(outputs[9]),
	}, nil
}

func (b *LiveBackend) JudgeAddress(ctx context.Context) (string, error) {
	outputs, err := b.eth.CallContract(ctx, b.contractAddress, contractABI, "judgeAddress")
	if err != nil {
		return "", fmt.Errorf("escrow: judgeAddress: %w", err)
	}
	if len(outputs) != 1 {
		return "", fmt.Errorf("escrow: unexpected judgeAddress output shape")
	}
	addr, ok := outputs[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("escrow: judgeAddress output not an address")
	}
	return addr.Hex(), nil
}

// PollEvents filters logs for the named event between fromBlock and
// toBlock (toBlock == -1 means "latest"), returning them ordered by
// (blockNumber, logIndex).
func (b *LiveBackend) PollEvents(ctx context.Context, name string, fromBlock, toBlock int64) ([]Event, error) {
	eventABI, ok := b.parsedABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("escrow: unknown event %q", name)
	}

	query := geth.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		Addresses: []common.Address{b.contractAddress},
		Topics:    [][]common.Hash{{eventABI.ID}},
	}
	if toBlock >= 0 {
		query.ToBlock = big.NewInt(toBlock)
	}

	logs, err := b.eth.GetClient().FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("escrow: filter logs: %w", err)
	}

	events := make([]Event, 0, len(logs))
	for _, lg := range logs {
		args := make(map[string]interface{})
		if err := b.parsedABI.UnpackIntoMap(args, name, lg.Data); err != nil {
			b.log.Printf("failed to unpack event %s: %v", name, err)
			continue
		}
		events = append(events, Event{
			Name:           name,
			BlockNumber:    int64(lg.BlockNumber),
			InsertionIndex: int64(lg.Index),
			TxHash:         lg.TxHash.Hex(),
			Args:           args,
		})
	}
	return events, nil
}
