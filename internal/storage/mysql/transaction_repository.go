package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	xerrors "cuffie-gateway/internal/errors"
)

// ErrUnsupportedDriver 表示配置了未知的账本驱动。
var ErrUnsupportedDriver = errors.New("暂不支持的存储驱动")

// memoryCacheSize 是文件仓库在内存中保留的最近记录条数。
const memoryCacheSize = 512

// TransactionRecord 表示一笔已广播交易在账本中的记录。
type TransactionRecord struct {
	ID        string `json:"id"`
	Method    string `json:"method"`
	Network   string `json:"network,omitempty"`
	ChainID   uint64 `json:"chain_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Hash      string `json:"hash"`
	GasPrice  string `json:"gas_price"`
	Gas       uint64 `json:"gas"`
	Amount    string `json:"amount,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// TransactionRepository 抽象交易账本的持久化接口。
type TransactionRepository interface {
	Save(ctx context.Context, record TransactionRecord) error
	ListLatest(ctx context.Context, limit int) ([]TransactionRecord, error)
	ListByAccount(ctx context.Context, account string, limit int) ([]TransactionRecord, error)
}

// prepare 补全记录的 ID 与时间戳，并统一地址大小写。
func prepare(record TransactionRecord) TransactionRecord {
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}
	record.From = strings.ToLower(record.From)
	record.To = strings.ToLower(record.To)
	record.Hash = strings.ToLower(record.Hash)
	return record
}

// MemoryTransactionRepository 使用本地 JSON 行文件保存账本，方便本地运行。
type MemoryTransactionRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []TransactionRecord
}

// NewMemoryTransactionRepository 创建文件账本并恢复历史记录。
func NewMemoryTransactionRepository(dataDir string) (*MemoryTransactionRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "transactions.log")
	repo := &MemoryTransactionRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录交易。
func (m *MemoryTransactionRepository) Save(_ context.Context, record TransactionRecord) error {
	record = prepare(record)

	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "打开交易账本失败")
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化交易记录失败")
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入交易账本失败")
	}

	m.records = append([]TransactionRecord{record}, m.records...)
	if len(m.records) > memoryCacheSize {
		m.records = m.records[:memoryCacheSize]
	}
	return nil
}

// ListLatest 返回最近的交易记录，按时间倒序排列。
func (m *MemoryTransactionRepository) ListLatest(_ context.Context, limit int) ([]TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]TransactionRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

// ListByAccount 返回某个账户发起的最近交易。
func (m *MemoryTransactionRepository) ListByAccount(_ context.Context, account string, limit int) ([]TransactionRecord, error) {
	account = strings.ToLower(strings.TrimSpace(account))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []TransactionRecord
	for _, record := range m.records {
		if record.From != account {
			continue
		}
		results = append(results, record)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (m *MemoryTransactionRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取交易账本失败")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []TransactionRecord
	for scanner.Scan() {
		var record TransactionRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append(restored, record)
	}
	if err := scanner.Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析交易账本失败")
	}

	// 文件按写入顺序保存，只保留最新的记录并倒序排列。
	if len(restored) > memoryCacheSize {
		restored = restored[len(restored)-memoryCacheSize:]
	}
	slices.Reverse(restored)
	if len(restored) > 0 {
		m.records = restored
	}
	return nil
}

// SQLTransactionRepository 使用 MySQL 存储交易账本。
type SQLTransactionRepository struct {
	db *sql.DB
}

// NewSQLTransactionRepository 创建连接池并执行尚未应用的迁移。
func NewSQLTransactionRepository(ctx context.Context, cfg Config) (*SQLTransactionRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &SQLTransactionRepository{db: db}
	if err := repo.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

const selectTransactionColumns = `SELECT id, method, network, chain_id, from_address, to_address, tx_hash, gas_price, gas, amount, created_at
    FROM transactions`

// Save 将交易记录写入 MySQL。
func (s *SQLTransactionRepository) Save(ctx context.Context, record TransactionRecord) error {
	record = prepare(record)

	const stmt = `INSERT INTO transactions
    (id, method, network, chain_id, from_address, to_address, tx_hash, gas_price, gas, amount, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.Method,
		record.Network,
		record.ChainID,
		record.From,
		record.To,
		record.Hash,
		record.GasPrice,
		record.Gas,
		record.Amount,
		record.CreatedAt,
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入 MySQL 失败")
	}
	return nil
}

// ListLatest 查询最近的若干条交易记录。
func (s *SQLTransactionRepository) ListLatest(ctx context.Context, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, selectTransactionColumns+` ORDER BY created_at DESC LIMIT ?`, limit)
}

// ListByAccount 查询某个账户发起的最近交易。
func (s *SQLTransactionRepository) ListByAccount(ctx context.Context, account string, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	account = strings.ToLower(strings.TrimSpace(account))
	return s.query(ctx, selectTransactionColumns+` WHERE from_address = ? ORDER BY created_at DESC LIMIT ?`, account, limit)
}

func (s *SQLTransactionRepository) query(ctx context.Context, query string, args ...any) ([]TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询交易记录失败")
	}
	defer rows.Close()

	var records []TransactionRecord
	for rows.Next() {
		var record TransactionRecord
		if err := rows.Scan(
			&record.ID,
			&record.Method,
			&record.Network,
			&record.ChainID,
			&record.From,
			&record.To,
			&record.Hash,
			&record.GasPrice,
			&record.Gas,
			&record.Amount,
			&record.CreatedAt,
		); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析交易记录失败")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历交易记录失败")
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLTransactionRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ TransactionRepository = (*MemoryTransactionRepository)(nil)
	_ TransactionRepository = (*SQLTransactionRepository)(nil)
)
