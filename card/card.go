package card

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Card 牌枚举
//
// 编码规则:
// - 高4位: 花色 (0:Hearts, 1:Diamonds, 2:Clubs, 3:Spades)
// - 低4位: 点数 (1:A, 2..9, 10:T, 11:J, 12:Q, 13:K)
type Card byte

func (c Card) String() string {
	if c == CardInvalid {
		return "Invalid"
	}
	return fmt.Sprintf("%s%c", c.RankLabel(), c.Suit().String()[0])
}

// Rank 获取牌面值 1-13 (A=1, K=13)
func (c Card) Rank() byte {
	if c == CardInvalid {
		return 0
	}
	return byte(c & 0x0F)
}

// Suit 花色 (0:Hearts, 1:Diamonds, 2:Clubs, 3:Spades)
func (c Card) Suit() Suit {
	return Suit(c >> 4)
}

func (c Card) IsAce() bool {
	return c.Rank() == 1
}

// HandRealVal 返回用于比较大小的点数:
// - A 视为 14
// - 其它为原始点数
func (c Card) HandRealVal() int {
	r := int(c & 0x0F)
	if r == 1 {
		return 14
	}
	return r
}

// RankLabel returns the wire form of the rank: "2".."10", "J", "Q", "K", "A".
func (c Card) RankLabel() string {
	switch r := c.Rank(); r {
	case 1:
		return "A"
	case 11:
		return "J"
	case 12:
		return "Q"
	case 13:
		return "K"
	default:
		return fmt.Sprintf("%d", r)
	}
}

type wireCard struct {
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

// MarshalJSON encodes the card as {"suit":"hearts","rank":"A"}. Clients depend
// on these exact field values.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCard{Suit: c.Suit().String(), Rank: c.RankLabel()})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var w wireCard
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := Parse(w.Rank, w.Suit)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse 将 ("A","hearts") 形式的点数/花色转换为 Card 常量
func Parse(rankStr, suitStr string) (Card, error) {
	var suitBase Card
	switch strings.ToLower(strings.TrimSpace(suitStr)) {
	case "hearts", "h":
		suitBase = 0x00
	case "diamonds", "d":
		suitBase = 0x10
	case "clubs", "c":
		suitBase = 0x20
	case "spades", "s":
		suitBase = 0x30
	default:
		return 0, fmt.Errorf("invalid suit: %s", suitStr)
	}

	var rankVal Card
	switch strings.ToUpper(strings.TrimSpace(rankStr)) {
	case "A":
		rankVal = 0x01
	case "2":
		rankVal = 0x02
	case "3":
		rankVal = 0x03
	case "4":
		rankVal = 0x04
	case "5":
		rankVal = 0x05
	case "6":
		rankVal = 0x06
	case "7":
		rankVal = 0x07
	case "8":
		rankVal = 0x08
	case "9":
		rankVal = 0x09
	case "T", "10":
		rankVal = 0x0A
	case "J":
		rankVal = 0x0B
	case "Q":
		rankVal = 0x0C
	case "K":
		rankVal = 0x0D
	default:
		return 0, fmt.Errorf("invalid rank: %s", rankStr)
	}

	return suitBase + rankVal, nil
}

// MustParse is Parse for test fixtures; panics on bad input.
func MustParse(rankStr, suitStr string) Card {
	c, err := Parse(rankStr, suitStr)
	if err != nil {
		panic(err)
	}
	return c
}
