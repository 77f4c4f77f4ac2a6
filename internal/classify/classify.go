// Package classify assigns a topic category to a translated headline.
package classify

import (
	"fmt"
	"strings"
	"unicode"

	"cnjp_news/internal/model"
)

// Rule maps one category to the keywords that select it.
type Rule struct {
	Category model.Category `yaml:"key"`
	Keywords []string       `yaml:"keywords"`
}

// Classifier performs first-match keyword lookup over an ordered rule table.
type Classifier struct {
	rules    []compiledRule
	fallback model.Category
}

type compiledRule struct {
	category model.Category
	literal  []string // matched as-is
	folded   []string // lowercased, matched against the lowercased title
}

// New builds a Classifier from rules in priority order.
// Empty keywords are ignored.
func New(rules []Rule) *Classifier {
	c := &Classifier{fallback: model.CategoryOther}
	for _, r := range rules {
		cr := compiledRule{category: r.Category}
		for _, kw := range r.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			if hasLatin(kw) {
				cr.folded = append(cr.folded, strings.ToLower(kw))
			} else {
				cr.literal = append(cr.literal, kw)
			}
		}
		c.rules = append(c.rules, cr)
	}
	return c
}

// Classify returns the first category with a keyword contained in title,
// or model.CategoryOther when nothing matches.
func (c *Classifier) Classify(title string) model.Category {
	lower := strings.ToLower(title)
	for _, r := range c.rules {
		for _, kw := range r.literal {
			if strings.Contains(title, kw) {
				return r.category
			}
		}
		for _, kw := range r.folded {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return c.fallback
}

// Categories lists the table's categories in priority order.
func (c *Classifier) Categories() []model.Category {
	out := make([]model.Category, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r.category)
	}
	return out
}

// Validate checks that a rule table is usable.
func Validate(rules []Rule) error {
	seen := make(map[model.Category]bool, len(rules))
	for i, r := range rules {
		if r.Category == "" {
			return fmt.Errorf("rule %d: category key is required", i)
		}
		if seen[r.Category] {
			return fmt.Errorf("rule %d: duplicate category %q", i, r.Category)
		}
		seen[r.Category] = true
	}
	return nil
}

func hasLatin(s string) bool {
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// DefaultRules is the built-in table for Chinese-translated Japanese headlines.
// Order matters: military and politics are checked before economy and society.
func DefaultRules() []Rule {
	return []Rule{
		{Category: model.CategoryMilitary, Keywords: []string{
			"自卫队", "防卫", "军事", "导弹", "军队", "战斗机", "航母", "驻日美军", "演习", "国防",
		}},
		{Category: model.CategoryPolitics, Keywords: []string{
			"首相", "政府", "内阁", "国会", "选举", "自民党", "立宪", "议员", "外交", "大臣", "政党", "总统", "峰会",
		}},
		{Category: model.CategoryEconomy, Keywords: []string{
			"经济", "日元", "股市", "日经", "央行", "日本银行", "企业", "物价", "通胀", "利率", "汇率", "出口", "GDP",
		}},
		{Category: model.CategorySports, Keywords: []string{
			"棒球", "足球", "大谷", "奥运", "比赛", "选手", "联赛", "冠军", "相扑", "MLB",
		}},
		{Category: model.CategoryEntertainment, Keywords: []string{
			"艺人", "偶像", "电影", "电视剧", "演员", "歌手", "综艺", "动漫", "明星", "结婚",
		}},
		{Category: model.CategorySociety, Keywords: []string{
			"事故", "逮捕", "警察", "地震", "火灾", "死亡", "台风", "学校", "医院", "交通", "天气", "熊",
		}},
	}
}
