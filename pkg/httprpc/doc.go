// Package httprpc calls remote HTTP endpoints described by declarative method descriptors.
//
// A method descriptor states the verb, the endpoint and the role of every argument. The
// client binds arguments to url placeholders, form fields, headers or a JSON body, resolves
// the endpoint, signs the request when the method takes a signing key, executes it and
// converts the response into the declared result type.
//
//	var getUser = httprpc.MustDescribe(httprpc.Method{
//		Name:    "getUser",
//		Verb:    httprpc.GET,
//		URLKey:  "users.get",
//		Params:  []httprpc.Param{httprpc.PathParam("id")},
//		Returns: httprpc.Returns[User](),
//	})
//
//	u, err := httprpc.Call[User](ctx, client, getUser, 42)
//
// Asynchronous methods return a Future or notify a Callback exactly once.
package httprpc
