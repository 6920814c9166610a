/*
 * @Description: 分发记录的公共ID编解码
 * @Author: 安知鱼
 * @Date: 2026-09-03 20:38:15
 * @LastEditTime: 2026-10-18 10:12:40
 * @LastEditors: 安知鱼
 */
package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/sqids/sqids-go"

	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
)

// DefaultAlphabet 空种子时使用的字母表，也是打乱的原料
const DefaultAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// 公共ID中携带的实体类型，解码时必须一致
const (
	EntityTypeDistributionRecord uint64 = 1
)

const minPublicIDLength = 4

// Codec 把数据库ID与实体类型编码成对外的短ID
type Codec struct {
	sq *sqids.Sqids
}

// NewCodec 按种子派生字母表创建编解码器。同一种子总是得到同一套ID，换种子后旧ID失效。
func NewCodec(seed string) (*Codec, error) {
	sq, err := sqids.New(sqids.Options{
		MinLength: minPublicIDLength,
		Alphabet:  alphabetFor(seed),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化公共ID编码器失败: %w", err)
	}
	return &Codec{sq: sq}, nil
}

// Encode 编码记录ID
func (c *Codec) Encode(dbID uint, entityType uint64) (string, error) {
	id, err := c.sq.Encode([]uint64{uint64(dbID), entityType})
	if err != nil {
		return "", fmt.Errorf("编码公共ID失败: %w", err)
	}
	return id, nil
}

// Decode 解码并校验实体类型，任何不符都视为无效ID
func (c *Codec) Decode(publicID string, entityType uint64) (uint, error) {
	nums := c.sq.Decode(publicID)
	if len(nums) != 2 || nums[1] != entityType {
		return 0, fmt.Errorf("%w: %q", constant.ErrInvalidPublicID, publicID)
	}
	// sqids 对非规范写法也能解出数字，重新编码比对以拒绝同一ID的多种写法
	canonical, err := c.sq.Encode(nums)
	if err != nil || canonical != publicID {
		return 0, fmt.Errorf("%w: %q", constant.ErrInvalidPublicID, publicID)
	}
	return uint(nums[0]), nil
}

// alphabetFor 用种子的 SHA-256 摘要驱动 Fisher-Yates 洗牌，摘要用尽后对其再次哈希
func alphabetFor(seed string) string {
	alphabet := []byte(DefaultAlphabet)
	if seed == "" {
		return DefaultAlphabet
	}
	digest := sha256.Sum256([]byte(seed))
	pos := 0
	for i := len(alphabet) - 1; i > 0; i-- {
		if pos+4 > len(digest) {
			digest = sha256.Sum256(digest[:])
			pos = 0
		}
		j := int(binary.BigEndian.Uint32(digest[pos:]) % uint32(i+1))
		pos += 4
		alphabet[i], alphabet[j] = alphabet[j], alphabet[i]
	}
	return string(alphabet)
}

var current atomic.Pointer[Codec]

// Setup 用种子初始化进程级编解码器，启动时调用一次
func Setup(seed string) error {
	c, err := NewCodec(seed)
	if err != nil {
		return err
	}
	current.Store(c)
	return nil
}

func active() (*Codec, error) {
	c := current.Load()
	if c == nil {
		return nil, fmt.Errorf("公共ID编码器未初始化")
	}
	return c, nil
}

// GeneratePublicID 使用进程级编解码器编码
func GeneratePublicID(dbID uint, entityType uint64) (string, error) {
	c, err := active()
	if err != nil {
		return "", err
	}
	return c.Encode(dbID, entityType)
}

// DecodeEntityID 使用进程级编解码器解码
func DecodeEntityID(publicID string, entityType uint64) (uint, error) {
	c, err := active()
	if err != nil {
		return 0, err
	}
	return c.Decode(publicID, entityType)
}

// GenerateRandomSeed 为全新安装生成 32 位十六进制种子
func GenerateRandomSeed() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成随机种子失败: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
