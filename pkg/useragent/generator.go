package useragent

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Generator builds realistic mobile User-Agents (Android and iOS/iPadOS)
// with randomized browser and OS versions. The browser mix is weighted the
// way mobile search traffic skews: mostly Chrome on Android and Safari on iPhone.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

var _ Provider = (*Generator)(nil)

type family struct {
	weight int
	build  func(g *Generator) string
}

var families = []family{
	{40, (*Generator).chromeAndroid},
	{10, (*Generator).edgeAndroid},
	{10, (*Generator).firefoxAndroid},
	{30, func(g *Generator) string { return g.safariIOS("iPhone") }},
	{10, func(g *Generator) string { return g.safariIOS("iPad") }},
}

var (
	chromeAndroidModels  = []string{"Pixel 8", "Pixel 7", "SM-S921B", "SM-S911U", "SM-G996B", "M2012K11AG"}
	edgeAndroidModels    = []string{"LE2115", "CPH2305", "SM-A536E", "Pixel 6a"}
	firefoxAndroidModels = []string{"Pixel 8", "SM-S711B", "Pixel 6", "GM1911"}
	androidVersions      = []string{"10", "11", "12", "13", "14"}
	webkitVersions       = []string{"605.1.15", "605.1.13", "605.1.12"}
	safariVersions       = []string{"16.3", "16.6", "17.2", "17.4", "17.5"}
)

// NewGenerator returns a Generator seeded from the runtime's random source.
func NewGenerator() *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededGenerator returns a deterministic Generator.
func NewSeededGenerator(seed1, seed2 uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed1, seed2))}
}

// Next implements Provider.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := 0
	for _, f := range families {
		total += f.weight
	}
	pick := g.rnd.IntN(total)
	for _, f := range families {
		if pick < f.weight {
			return f.build(g)
		}
		pick -= f.weight
	}
	return families[0].build(g)
}

// between returns a value in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rnd.IntN(hi-lo+1)
}

func (g *Generator) choice(opts []string) string {
	return opts[g.rnd.IntN(len(opts))]
}

func (g *Generator) chromeVersion() (string, int) {
	major := g.between(118, 129)
	return fmt.Sprintf("%d.0.%d.%d", major, g.between(0, 5999), g.between(10, 199)), major
}

func (g *Generator) chromeAndroid() string {
	model := g.choice(chromeAndroidModels)
	cv, _ := g.chromeVersion()
	return fmt.Sprintf("Mozilla/5.0 (Linux; Android %s; %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Mobile Safari/537.36",
		g.choice(androidVersions), model, cv)
}

func (g *Generator) edgeAndroid() string {
	model := g.choice(edgeAndroidModels)
	cv, major := g.chromeVersion()
	return fmt.Sprintf("Mozilla/5.0 (Linux; Android %s; %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Mobile Safari/537.36 EdgA/%d.0.%d.%d",
		g.choice(androidVersions), model, cv, major, g.between(1000, 9999), g.between(10, 199))
}

func (g *Generator) firefoxAndroid() string {
	model := g.choice(firefoxAndroidModels)
	ver := fmt.Sprintf("%d.0", g.between(112, 130))
	return fmt.Sprintf("Mozilla/5.0 (Android %s; Mobile; rv:%s; %s) Gecko/20100101 Firefox/%s",
		g.choice(androidVersions), ver, model, ver)
}

func (g *Generator) safariIOS(device string) string {
	major := 15 + g.rnd.IntN(3)
	minor := g.between(0, 7)
	patch := g.between(0, 5)
	return fmt.Sprintf("Mozilla/5.0 (%s; CPU %s OS %d_%d_%d like Mac OS X) AppleWebKit/%s (KHTML, like Gecko) Version/%s Mobile/15E148 Safari/%s",
		device, device, major, minor, patch, g.choice(webkitVersions), g.choice(safariVersions), g.choice(webkitVersions))
}
