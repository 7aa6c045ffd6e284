package game

import "math"

type Level struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
	Icon      string `json:"icon"`
}

// Levels is ordered by Threshold. Icon is the CSS color class the web build
// paints the button with.
var Levels = []Level{
	{ID: 1, Name: "Картонна кнопка", Threshold: 0, Icon: "text-[#D2B48C]"},
	{ID: 2, Name: "Дерев'яна кнопка", Threshold: 500, Icon: "text-[#8B5A2B]"},
	{ID: 3, Name: "Кам'яна кнопка", Threshold: 1500, Icon: "text-[#888C8D]"},
	{ID: 4, Name: "Мідна кнопка", Threshold: 3500, Icon: "text-[#B87333]"},
	{ID: 5, Name: "Бронзова кнопка", Threshold: 7500, Icon: "text-[#CD7F32]"},
	{ID: 6, Name: "Залізна кнопка", Threshold: 15000, Icon: "text-[#A19D94]"},
	{ID: 7, Name: "Срібна кнопка", Threshold: 30000, Icon: "text-[#C0C0C0]"},
	{ID: 8, Name: "Золота кнопка", Threshold: 60000, Icon: "text-[#FFD700]"},
	{ID: 9, Name: "Платинова кнопка", Threshold: 100000, Icon: "text-[#E5E4E2]"},
	{ID: 10, Name: "Кварцова кнопка", Threshold: 150000, Icon: "text-[#F7F7F7]"},
	{ID: 11, Name: "Нефритова кнопка", Threshold: 225000, Icon: "text-[#00A86B]"},
	{ID: 12, Name: "Аметистова кнопка", Threshold: 325000, Icon: "text-[#9966CC]"},
	{ID: 13, Name: "Смарагдова кнопка", Threshold: 450000, Icon: "text-[#50C878]"},
	{ID: 14, Name: "Сапфірова кнопка", Threshold: 600000, Icon: "text-[#0F52BA]"},
	{ID: 15, Name: "Рубінова кнопка", Threshold: 800000, Icon: "text-[#E0115F]"},
	{ID: 16, Name: "Обсидіанова кнопка", Threshold: 1000000, Icon: "text-[#302E39]"},
	{ID: 17, Name: "Діамантова кнопка", Threshold: 1500000, Icon: "text-[#b9f2ff]"},
	{ID: 18, Name: "Кібер-кнопка", Threshold: 3000000, Icon: "text-[#00FF00]"},
	{ID: 19, Name: "Плазмова кнопка", Threshold: 5000000, Icon: "text-[#B026FF]"},
	{ID: 20, Name: "Космічна кнопка", Threshold: 10000000, Icon: "text-[#0B3D91]"},
}

// LevelFor returns the last level whose threshold is reached.
func LevelFor(score int64) Level {
	for i := len(Levels) - 1; i >= 0; i-- {
		if score >= Levels[i].Threshold {
			return Levels[i]
		}
	}
	return Levels[0]
}

// NextLevelFor returns the level after the current one, or false at the top.
func NextLevelFor(score int64) (Level, bool) {
	cur := LevelFor(score)
	for _, l := range Levels {
		if l.ID == cur.ID+1 {
			return l, true
		}
	}
	return Level{}, false
}

// ProgressFor is the percentage of the way from the current level to the
// next one, in [0, 100]. It is 100 at the top level.
func ProgressFor(score int64) float64 {
	cur := LevelFor(score)
	next, ok := NextLevelFor(score)
	if !ok {
		return 100
	}
	p := float64(score-cur.Threshold) / float64(next.Threshold-cur.Threshold) * 100
	return math.Min(100, math.Max(0, p))
}
