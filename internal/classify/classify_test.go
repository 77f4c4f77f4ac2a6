package classify

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"cnjp_news/internal/model"
)

func TestClassify(t *testing.T) {
	rules := []Rule{
		{Category: model.CategoryMilitary, Keywords: []string{"自卫队", "导弹"}},
		{Category: model.CategoryPolitics, Keywords: []string{"首相", "选举"}},
		{Category: model.CategoryEconomy, Keywords: []string{"日元", "GDP"}},
		{Category: model.CategorySports, Keywords: []string{"大谷", "MLB"}},
	}
	c := New(rules)

	tests := []struct {
		name  string
		title string
		want  model.Category
	}{
		{
			name:  "single keyword match",
			title: "日元汇率再创新低",
			want:  model.CategoryEconomy,
		},
		{
			name:  "first rule wins when several match",
			title: "首相视察自卫队基地",
			want:  model.CategoryMilitary,
		},
		{
			name:  "no match falls back to other",
			title: "东京今天天气晴朗",
			want:  model.CategoryOther,
		},
		{
			name:  "latin keyword is case insensitive",
			title: "第三季度gdp增长放缓",
			want:  model.CategoryEconomy,
		},
		{
			name:  "latin keyword upper case in title",
			title: "大联盟Mlb赛程公布",
			want:  model.CategorySports,
		},
		{
			name:  "empty title",
			title: "",
			want:  model.CategoryOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.title)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassifyRuleOrderIsConfigurable(t *testing.T) {
	title := "首相视察自卫队基地"

	politicsFirst := New([]Rule{
		{Category: model.CategoryPolitics, Keywords: []string{"首相"}},
		{Category: model.CategoryMilitary, Keywords: []string{"自卫队"}},
	})
	if diff := cmp.Diff(model.CategoryPolitics, politicsFirst.Classify(title)); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyIgnoresBlankKeywords(t *testing.T) {
	c := New([]Rule{{Category: model.CategoryPolitics, Keywords: []string{"", "  "}}})
	if diff := cmp.Diff(model.CategoryOther, c.Classify("任何标题")); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultRules(t *testing.T) {
	c := New(DefaultRules())

	tests := []struct {
		title string
		want  model.Category
	}{
		{title: "高市首相出席国会答辩", want: model.CategoryPolitics},
		{title: "朝鲜发射弹道导弹", want: model.CategoryMilitary},
		{title: "日经平均指数大涨", want: model.CategoryEconomy},
		{title: "大谷翔平获得MVP", want: model.CategorySports},
		{title: "人气偶像宣布结婚", want: model.CategoryEntertainment},
		{title: "北海道发生地震", want: model.CategorySociety},
		{title: "新品发布会", want: model.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, c.Classify(tt.title)); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if err := Validate(DefaultRules()); err != nil {
		t.Errorf("default rules invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr bool
	}{
		{name: "empty table", rules: nil},
		{name: "valid", rules: []Rule{{Category: model.CategoryEconomy, Keywords: []string{"日元"}}}},
		{name: "missing key", rules: []Rule{{Keywords: []string{"x"}}}, wantErr: true},
		{
			name: "duplicate key",
			rules: []Rule{
				{Category: model.CategoryEconomy},
				{Category: model.CategoryEconomy},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rules)
			gotErr := err != nil
			if diff := cmp.Diff(tt.wantErr, gotErr); diff != "" {
				t.Errorf("Validate() error mismatch (-want +got):\n%s\nerr: %v", diff, err)
			}
		})
	}
}
