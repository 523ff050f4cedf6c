package httprpc_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tansive/httprpc/pkg/httprpc"
	"github.com/tansive/httprpc/pkg/httprpc/config"
)

type Weather struct {
	City    string  `json:"city"`
	Celsius float64 `json:"celsius"`
}

var weather = httprpc.NewService("weather", httprpc.WithServiceHeaders(map[string]string{"X-Api-Version": "2"}))

var (
	current = weather.MustDeclare(httprpc.Method{
		Name:    "current",
		Verb:    httprpc.GET,
		URLKey:  "weather.current",
		Params:  []httprpc.Param{httprpc.PathParam("city"), httprpc.Field("units")},
		Returns: httprpc.Returns[Weather](),
	})
	forecast = weather.MustDeclare(httprpc.Method{
		Name:    "forecast",
		Verb:    httprpc.GET,
		URLKey:  "weather.forecast",
		Async:   true,
		Params:  []httprpc.Param{httprpc.PathParam("city")},
		Returns: httprpc.ReturnsAsync[[]Weather](),
	})
)

// WeatherClient is a typed facade over the weather service.
type WeatherClient struct {
	c *httprpc.Client
}

func (w WeatherClient) Current(ctx context.Context, city string) (Weather, error) {
	return httprpc.Call[Weather](ctx, w.c, current, city, nil)
}

func (w WeatherClient) Forecast(ctx context.Context, city string) *httprpc.Future[[]Weather] {
	return httprpc.CallAsync[[]Weather](ctx, w.c, forecast, city)
}

func Example() {
	r := chi.NewRouter()
	r.Get("/now/{city}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"city":%q,"celsius":21.5}`, chi.URLParam(r, "city"))
	})
	r.Get("/forecast/{city}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"city":%q,"celsius":19},{"city":%q,"celsius":23}]`, chi.URLParam(r, "city"), chi.URLParam(r, "city"))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := httprpc.NewClient(
		httprpc.WithLogger(zerolog.Nop()),
		httprpc.WithConfigSource(config.MapSource{
			"weather.current":  srv.URL + "/now/{city}",
			"weather.forecast": srv.URL + "/forecast/{city}",
		}),
	)
	defer client.Close()
	wc := WeatherClient{c: client}

	now, err := wc.Current(context.Background(), "Oslo")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%s %.1f\n", now.City, now.Celsius)

	days, err := wc.Forecast(context.Background(), "Bergen").GetTimeout(5 * time.Second)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(len(days), days[1].Celsius)

	// Output:
	// Oslo 21.5
	// 2 23
}
